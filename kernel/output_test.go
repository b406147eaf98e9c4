package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/model"
)

func TestOutputWritesMatchingRowsToDestination(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false), baseRow("r2", 200, false)}
	frame := columnar.NewMaterial(schema, rows)

	writer := &fakeWriter{}
	deps := testDeps(newFakeLoader(), writer, newFakeMetadata(), testSnapshot("sink"))

	args := model.OutputArgs{Destination: "sink"}
	res, err := Output(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount)
	require.Len(t, writer.writes, 1)
	require.Len(t, writer.writes[0].Rows, 2)
}

func TestOutputExcludesSoftDeletedRowsByDefault(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false), baseRow("r2", 200, true)}
	frame := columnar.NewMaterial(schema, rows)

	writer := &fakeWriter{}
	deps := testDeps(newFakeLoader(), writer, newFakeMetadata(), testSnapshot("sink"))

	args := model.OutputArgs{Destination: "sink"}
	res, err := Output(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
}

func TestOutputIncludesSoftDeletedRowsWhenRequested(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false), baseRow("r2", 200, true)}
	frame := columnar.NewMaterial(schema, rows)

	writer := &fakeWriter{}
	deps := testDeps(newFakeLoader(), writer, newFakeMetadata(), testSnapshot("sink"))

	args := model.OutputArgs{Destination: "sink", IncludeDeleted: true}
	res, err := Output(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount)
}

func TestOutputProjectsRequestedColumns(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false)}
	frame := columnar.NewMaterial(schema, rows)

	writer := &fakeWriter{}
	deps := testDeps(newFakeLoader(), writer, newFakeMetadata(), testSnapshot("sink"))

	args := model.OutputArgs{Destination: "sink", Columns: []string{"amount"}}
	res, err := Output(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	require.Equal(t, []string{"amount"}, res.Columns)
	require.Len(t, writer.writes[0].Rows[0], 1)
}

func TestOutputRegistersDestinationAsDataset(t *testing.T) {
	schema := baseSchema()
	frame := columnar.NewMaterial(schema, []model.Row{baseRow("r1", 100, false)})

	writer := &fakeWriter{}
	meta := newFakeMetadata()
	deps := testDeps(newFakeLoader(), writer, meta, testSnapshot("sink"))

	name := "derived_dataset"
	args := model.OutputArgs{Destination: "sink", RegisterAsDataset: &name}
	_, err := Output(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)

	ds, ok := meta.datasets["derived_dataset"]
	require.True(t, ok)
	require.True(t, ds.Active)
	require.Equal(t, "derived_dataset", ds.Main.Name)
	for _, c := range ds.Main.Columns {
		require.NotEqual(t, model.ColDeleted, c.Name, "registered dataset schema excludes system columns")
	}
}

func TestOutputSelectorFiltersRows(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false), baseRow("r2", 5000, false)}
	frame := columnar.NewMaterial(schema, rows)

	writer := &fakeWriter{}
	deps := testDeps(newFakeLoader(), writer, newFakeMetadata(), testSnapshot("sink"))

	args := model.OutputArgs{Destination: "sink", Selector: "amount > 1000"}
	res, err := Output(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
}
