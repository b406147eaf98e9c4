package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/model"
)

func TestUpdateSetsUpdatedAtUnconditionallyForMatchedRows(t *testing.T) {
	schema := baseSchema()
	runTS := testPeriod().Start.AddDate(0, 0, 5)
	rows := []model.Row{baseRow("r1", 100, false)}
	frame := columnar.NewMaterial(schema, rows)

	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))
	args := model.UpdateArgs{
		Selector:    "true",
		Assignments: []model.Assignment{{Column: "amount", Expression: "amount"}}, // no-op value
	}

	out, _, err := Update(context.Background(), deps, frame, schema, args, testPeriod(), runTS)
	require.NoError(t, err)
	got, err := out.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 100.0, got[0]["amount"].Num, "assignment re-wrote the same value")
	require.True(t, got[0][model.ColUpdatedAt].Time.Equal(runTS), "_updated_at must be set for every matched row, even with no actual value change")
}

func TestUpdateLeavesNonMatchingRowsUntouched(t *testing.T) {
	schema := baseSchema()
	original := testPeriod().Start
	runTS := original.AddDate(0, 0, 5)
	rows := []model.Row{baseRow("r1", 100, false)}
	frame := columnar.NewMaterial(schema, rows)

	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))
	args := model.UpdateArgs{
		Selector:    "false",
		Assignments: []model.Assignment{{Column: "amount", Expression: "amount * 2"}},
	}

	out, _, err := Update(context.Background(), deps, frame, schema, args, testPeriod(), runTS)
	require.NoError(t, err)
	got, err := out.Rows(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100.0, got[0]["amount"].Num)
	require.True(t, got[0][model.ColUpdatedAt].Time.Equal(original), "non-matching rows keep their prior _updated_at")
}

func TestUpdateExtendsSchemaForNewAssignmentColumn(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false)}
	frame := columnar.NewMaterial(schema, rows)

	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))
	args := model.UpdateArgs{
		Selector:    "true",
		Assignments: []model.Assignment{{Column: "flag", Expression: "true"}},
	}

	out, outSchema, err := Update(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	require.True(t, outSchema.Has("flag"))
	got, err := out.Rows(context.Background())
	require.NoError(t, err)
	require.True(t, got[0]["flag"].Bool)
}

func TestUpdateWithRuntimeJoin(t *testing.T) {
	schema := baseSchema()
	rows := []model.Row{baseRow("r1", 100, false)}
	frame := columnar.NewMaterial(schema, rows)

	loader := newFakeLoader()
	lookupSchema := append(model.Schema{{Name: "rate", Type: model.Number}}, model.SystemColumns(model.PeriodMode)...)
	lookupRow := baseRow("l1", 0, false)
	lookupRow["rate"] = model.NumberValue(2)
	lookupRow[model.ColPeriod] = model.StringValue("2026-01")
	loader.seed("rates", lookupSchema, []model.Row{lookupRow})

	meta := newFakeMetadata()
	meta.datasets["rates"] = model.Dataset{
		ID: "rates", Version: 1, Name: "rates", Active: true,
		Main: model.TableRef{Name: "rates", TemporalMode: model.PeriodMode, Columns: model.Schema{{Name: "rate", Type: model.Number}}},
	}

	deps := testDeps(loader, nil, meta, testSnapshot("rates"))
	args := model.UpdateArgs{
		Joins: []model.Join{{Alias: "fx", DatasetID: "rates", OnExpression: "true"}},
		Assignments: []model.Assignment{
			{Column: "amount", Expression: "amount * fx.rate"},
		},
	}

	out, _, err := Update(context.Background(), deps, frame, schema, args, testPeriod(), testPeriod().Start)
	require.NoError(t, err)
	got, err := out.Rows(context.Background())
	require.NoError(t, err)
	require.Equal(t, 200.0, got[0]["amount"].Num)
}
