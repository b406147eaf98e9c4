package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/model"
)

func regionSchema() model.Schema {
	out := model.Schema{
		{Name: "amount", Type: model.Number},
		{Name: "region", Type: model.String},
	}
	return append(out, model.SystemColumns(model.PeriodMode)...)
}

func regionRow(id, region string, amount float64) model.Row {
	r := baseRow(id, amount, false)
	r["region"] = model.StringValue(region)
	return r
}

func TestAggregateSumGroupedByColumn(t *testing.T) {
	schema := regionSchema()
	rows := []model.Row{
		regionRow("r1", "west", 100),
		regionRow("r2", "west", 200),
		regionRow("r3", "east", 50),
	}
	frame := columnar.NewMaterial(schema, rows)
	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))

	args := model.AggregateArgs{
		GroupBy:      []string{"region"},
		Aggregations: []model.Aggregation{{Column: "total", Expression: "SUM(amount)"}},
	}
	runTS := testPeriod().Start.AddDate(0, 0, 5)

	out, outSchema, err := Aggregate(deps, frame, schema, args, runTS)
	require.NoError(t, err)
	require.True(t, outSchema.Has("total"))

	got, err := out.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5, "original 3 detail rows plus 2 group summaries")

	totals := map[string]float64{}
	for _, r := range got {
		if v, ok := r["total"]; ok && !v.Null {
			totals[r["region"].Str] = v.Num
		}
	}
	require.Equal(t, 300.0, totals["west"])
	require.Equal(t, 50.0, totals["east"])
}

func TestAggregateCountCountsAllRowsInGroup(t *testing.T) {
	schema := regionSchema()
	rows := []model.Row{
		regionRow("r1", "west", 100),
		regionRow("r2", "west", 200),
	}
	frame := columnar.NewMaterial(schema, rows)
	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))

	args := model.AggregateArgs{
		GroupBy:      []string{"region"},
		Aggregations: []model.Aggregation{{Column: "n", Expression: "COUNT(amount)"}},
	}
	out, _, err := Aggregate(deps, frame, schema, args, testPeriod().Start)
	require.NoError(t, err)
	got, err := out.Rows(context.Background())
	require.NoError(t, err)
	for _, r := range got {
		if v, ok := r["n"]; ok && !v.Null {
			require.Equal(t, 2.0, v.Num)
		}
	}
}

func TestAggregateRejectsEmptyGroupBy(t *testing.T) {
	schema := regionSchema()
	frame := columnar.NewMaterial(schema, nil)
	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))

	args := model.AggregateArgs{
		Aggregations: []model.Aggregation{{Column: "total", Expression: "SUM(amount)"}},
	}
	_, _, err := Aggregate(deps, frame, schema, args, testPeriod().Start)
	require.True(t, errs.EmptyGroupBy.Is(err))
}

func TestAggregateRejectsEmptyAggregations(t *testing.T) {
	schema := regionSchema()
	frame := columnar.NewMaterial(schema, nil)
	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))

	args := model.AggregateArgs{GroupBy: []string{"region"}}
	_, _, err := Aggregate(deps, frame, schema, args, testPeriod().Start)
	require.True(t, errs.EmptyAggregations.Is(err))
}

func TestAggregateRejectsSystemColumnAsAggregationTarget(t *testing.T) {
	schema := regionSchema()
	frame := columnar.NewMaterial(schema, nil)
	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))

	args := model.AggregateArgs{
		GroupBy:      []string{"region"},
		Aggregations: []model.Aggregation{{Column: model.ColDeleted, Expression: "SUM(amount)"}},
	}
	_, _, err := Aggregate(deps, frame, schema, args, testPeriod().Start)
	require.True(t, errs.SystemColumnConflict.Is(err))
}

func TestAggregateRejectsDuplicateGroupBy(t *testing.T) {
	schema := regionSchema()
	frame := columnar.NewMaterial(schema, nil)
	deps := testDeps(newFakeLoader(), nil, newFakeMetadata(), testSnapshot("unused"))

	args := model.AggregateArgs{
		GroupBy:      []string{"region", "region"},
		Aggregations: []model.Aggregation{{Column: "total", Expression: "SUM(amount)"}},
	}
	_, _, err := Aggregate(deps, frame, schema, args, testPeriod().Start)
	require.True(t, errs.DuplicateGroupBy.Is(err))
}
