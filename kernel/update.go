package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/model"
)

// Update implements spec §4.4.1: compile selector + assignments, attach
// any runtime joins first, extend the schema for new assignment
// targets, and overwrite matching rows' assignment columns plus
// _updated_at.
func Update(ctx context.Context, deps Deps, frame columnar.LazyFrame, schema model.Schema, args model.UpdateArgs, runPeriod model.Period, runTimestamp time.Time) (columnar.LazyFrame, model.Schema, error) {
	joinSchemas := map[string]model.Schema{}
	seenAlias := map[string]bool{}
	for _, j := range args.Joins {
		if seenAlias[j.Alias] {
			return nil, nil, errs.Internal.New(fmt.Sprintf("duplicate join alias %s", j.Alias))
		}
		seenAlias[j.Alias] = true

		joined, joinedSchema, err := loadDataset(ctx, deps, j.DatasetID, j.DatasetVersion, "", runPeriod)
		if err != nil {
			return nil, nil, err
		}
		joinSchemas[j.Alias] = aliasSchema(j.Alias, joinedSchema)

		onCtx := &expr.Context{Schema: schema, Joins: joinSchemas, RunTimestamp: runTimestamp}
		onEval, err := compileBool(deps, j.OnExpression, onCtx)
		if err != nil {
			return nil, nil, err
		}
		alias := j.Alias
		frame = &columnar.LeftJoin{
			Left:  frame,
			Right: joined,
			Alias: alias,
			Pred: func(left, right model.Row) (bool, error) {
				merged := left.Clone()
				for k, v := range right {
					merged[k] = v
				}
				return boolOf(onEval.Eval(expr.Vars{Row: merged}))
			},
		}
		schema = frame.Schema()
	}

	selCtx := &expr.Context{Schema: schema, Joins: joinSchemas, RunTimestamp: runTimestamp}
	selEval, err := compileBool(deps, args.Selector, selCtx)
	if err != nil {
		return nil, nil, err
	}

	type compiledAssignment struct {
		column string
		eval   expr.Evaluator
		typ    model.ScalarType
	}
	assignments := make([]compiledAssignment, 0, len(args.Assignments))
	outSchema := schema
	for _, a := range args.Assignments {
		actx := &expr.Context{Schema: schema, Joins: joinSchemas, RunTimestamp: runTimestamp}
		ast, err := expr.Parse(a.Expression)
		if err != nil {
			return nil, nil, err
		}
		if err := expr.Validate(ast, actx); err != nil {
			return nil, nil, err
		}
		eval, err := expr.Lower(ast)
		if err != nil {
			return nil, nil, err
		}
		if !outSchema.Has(a.Column) {
			outSchema = outSchema.WithColumn(model.ColumnDef{Name: a.Column, Type: ast.ResultType(), Nullable: true})
		}
		assignments = append(assignments, compiledAssignment{column: a.Column, eval: eval, typ: ast.ResultType()})
	}

	mapFrame := &columnar.Map{
		Parent:    frame,
		SchemaOut: outSchema,
		Fn: func(row model.Row) (model.Row, bool, error) {
			vars := expr.Vars{Row: row}
			match, err := selEval.Eval(vars)
			if err != nil {
				return nil, false, err
			}
			out := row.Clone()
			if match.Null || !match.Bool {
				for _, col := range outSchema {
					if _, ok := out[col.Name]; !ok {
						out[col.Name] = model.NullValue(col.Type)
					}
				}
				return out, false, nil
			}
			diff := false
			for _, a := range assignments {
				val, err := a.eval.Eval(vars)
				if err != nil {
					return nil, false, err
				}
				if prev, ok := out[a.column]; !ok || !prev.RawEqual(val) {
					diff = true
				}
				out[a.column] = val
			}
			out[model.ColUpdatedAt] = model.DateValue(runTimestamp)
			return out, diff, nil
		},
	}
	return mapFrame, outSchema, nil
}

// aliasSchema is the joined schema as registered under alias in
// expr.Context.Joins: column names stay unqualified (the alias is the map
// key, so `alias.column` resolves against it) and every column becomes
// nullable, since a left join can leave it unmatched.
func aliasSchema(alias string, schema model.Schema) model.Schema {
	out := make(model.Schema, len(schema))
	for i, c := range schema {
		out[i] = model.ColumnDef{Name: c.Name, Type: c.Type, Nullable: true}
	}
	return out
}

func boolOf(v model.Value, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return !v.Null && v.Bool, nil
}
