package kernel

import (
	"context"
	"time"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/model"
	"github.com/latticerun/engine/resolve"
)

// Output implements spec §4.4.5: filter, exclude soft-deleted rows
// unless requested otherwise, optionally project, and write to the
// resolved destination. It never modifies the working frame — callers
// must keep using the frame passed into this kernel, not any value
// derived from it here.
func Output(ctx context.Context, deps Deps, frame columnar.LazyFrame, schema model.Schema, args model.OutputArgs, runPeriod model.Period, runTimestamp time.Time) (iface.WriteResult, error) {
	selCtx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp}
	selEval, err := compileBool(deps, args.Selector, selCtx)
	if err != nil {
		return iface.WriteResult{}, err
	}

	filtered := &columnar.Filter{
		Parent: frame,
		Pred: func(row model.Row) (bool, error) {
			v, err := selEval.Eval(expr.Vars{Row: row})
			if err != nil {
				return false, err
			}
			if v.Null || !v.Bool {
				return false, nil
			}
			if args.IncludeDeleted {
				return true, nil
			}
			del := row[model.ColDeleted]
			return del.Null || !del.Bool, nil
		},
	}

	var projected columnar.LazyFrame = filtered
	outSchema := schema
	if len(args.Columns) > 0 {
		projected = &columnar.Project{Parent: filtered, Columns: args.Columns}
		outSchema = projected.Schema()
	}

	rows, err := projected.Rows(ctx)
	if err != nil {
		return iface.WriteResult{}, err
	}

	req := iface.ResolutionRequest{DatasetID: args.Destination, RequestedPeriod: runPeriod}
	diag, err := resolve.Resolve(deps.ResolverSnap, req)
	if err != nil {
		return iface.WriteResult{}, err
	}

	total := iface.WriteResult{Columns: columnNames(outSchema)}
	for _, loc := range diag.Locations {
		res, err := deps.Writer.Write(ctx, loc, iface.Rows{Schema: outSchema, Rows: rows})
		if err != nil {
			return iface.WriteResult{}, err
		}
		total.RowCount += res.RowCount
	}

	if args.RegisterAsDataset != nil {
		ds := model.Dataset{
			ID:     *args.RegisterAsDataset,
			Name:   *args.RegisterAsDataset,
			Active: true,
			Main: model.TableRef{
				Name:    *args.RegisterAsDataset,
				Columns: userColumns(outSchema),
			},
		}
		if _, err := deps.Metadata.RegisterDataset(ctx, ds); err != nil {
			return iface.WriteResult{}, err
		}
	}

	return total, nil
}

func columnNames(schema model.Schema) []string {
	out := make([]string, len(schema))
	for i, c := range schema {
		out[i] = c.Name
	}
	return out
}

func userColumns(schema model.Schema) []model.ColumnDef {
	out := make([]model.ColumnDef, 0, len(schema))
	for _, c := range schema {
		if !model.IsSystemColumn(c.Name) {
			out = append(out, c)
		}
	}
	return out
}
