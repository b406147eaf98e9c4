package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/internal/rowid"
	"github.com/latticerun/engine/model"
)

// Append implements spec §4.4.4: resolve and load the source dataset,
// optionally filter and reduce it, align its columns onto the working
// schema, and append the result.
func Append(ctx context.Context, deps Deps, frame columnar.LazyFrame, schema model.Schema, args model.AppendArgs, runPeriod model.Period, runTimestamp time.Time) (columnar.LazyFrame, model.Schema, error) {
	sourceFrame, sourceSchema, sourceTable, err := loadDatasetTable(ctx, deps, args.SourceDatasetID, nil, "", runPeriod)
	if err != nil {
		return nil, nil, err
	}

	if args.Selector != "" {
		selCtx := &expr.Context{Schema: sourceSchema, RunTimestamp: runTimestamp}
		selEval, err := compileBool(deps, args.Selector, selCtx)
		if err != nil {
			return nil, nil, err
		}
		sourceFrame = &columnar.Filter{
			Parent: sourceFrame,
			Pred: func(row model.Row) (bool, error) {
				v, err := selEval.Eval(expr.Vars{Row: row})
				if err != nil {
					return false, err
				}
				return !v.Null && v.Bool, nil
			},
		}
	}

	var sourceRows []model.Row
	if args.Aggregation != nil {
		summaries, aggSchema, err := computeAggregateSummaries(deps, sourceFrame, sourceSchema, *args.Aggregation, runTimestamp)
		if err != nil {
			return nil, nil, err
		}
		sourceRows = summaries
		sourceSchema = aggSchema
	} else {
		sourceRows, err = sourceFrame.Rows(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, col := range sourceSchema {
		if model.IsSystemColumn(col.Name) {
			continue
		}
		if !schema.Has(col.Name) {
			return nil, nil, errs.SchemaMismatch.New(fmt.Sprintf("source column %s is not present in the working schema", col.Name))
		}
	}

	appended := make([]model.Row, len(sourceRows))
	for i, r := range sourceRows {
		out := model.Row{}
		for _, col := range schema {
			if v, ok := r[col.Name]; ok {
				out[col.Name] = v
			} else {
				out[col.Name] = model.NullValue(col.Type)
			}
		}
		out[model.ColRowID] = model.StringValue(rowid.New(runTimestamp))
		out[model.ColCreatedAt] = model.DateValue(runTimestamp)
		out[model.ColUpdatedAt] = model.DateValue(runTimestamp)
		out[model.ColDeleted] = model.BoolValue(false)
		out[model.ColSourceDatasetID] = model.StringValue(args.SourceDatasetID)
		out[model.ColSourceTable] = model.StringValue(sourceTable)
		appended[i] = out
	}

	out := &columnar.Concat{
		First:  frame,
		Second: columnar.NewMaterial(schema, appended),
	}
	return out, schema, nil
}
