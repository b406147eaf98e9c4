package kernel

import (
	"time"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/model"
)

// Delete implements spec §4.4.2: rows matching the selector and
// currently _deleted=false are marked _deleted=true with _updated_at
// set to run_timestamp; rows already deleted are left untouched
// (timestamp preserved), making repeated deletes with the same selector
// idempotent (spec §8 round-trip property).
func Delete(deps Deps, frame columnar.LazyFrame, schema model.Schema, selector string, runTimestamp time.Time) (columnar.LazyFrame, model.Schema, error) {
	selCtx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp}
	selEval, err := compileBool(deps, selector, selCtx)
	if err != nil {
		return nil, nil, err
	}

	mapFrame := &columnar.Map{
		Parent:    frame,
		SchemaOut: schema,
		Fn: func(row model.Row) (model.Row, bool, error) {
			already := row[model.ColDeleted]
			if !already.Null && already.Bool {
				return row.Clone(), false, nil
			}
			match, err := selEval.Eval(expr.Vars{Row: row})
			if err != nil {
				return nil, false, err
			}
			if match.Null || !match.Bool {
				return row.Clone(), false, nil
			}
			out := row.Clone()
			out[model.ColDeleted] = model.BoolValue(true)
			out[model.ColUpdatedAt] = model.DateValue(runTimestamp)
			return out, true, nil
		},
	}
	return mapFrame, schema, nil
}
