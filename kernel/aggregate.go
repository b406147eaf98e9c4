package kernel

import (
	"fmt"
	"time"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/internal/rowid"
	"github.com/latticerun/engine/model"
)

// Aggregate implements spec §4.4.3: filter by selector, group by the
// group-by columns, compute one summary row per group, and append the
// summaries to the *unfiltered* original working frame (detail rows are
// preserved).
func Aggregate(deps Deps, frame columnar.LazyFrame, schema model.Schema, args model.AggregateArgs, runTimestamp time.Time) (columnar.LazyFrame, model.Schema, error) {
	summaries, outSchema, err := computeAggregateSummaries(deps, frame, schema, args, runTimestamp)
	if err != nil {
		return nil, nil, err
	}
	out := &columnar.Concat{
		First:  frame,
		Second: columnar.NewMaterial(outSchema, summaries),
	}
	return out, outSchema, nil
}

// computeAggregateSummaries runs the filter -> group -> reduce pipeline
// shared by Aggregate (over the working frame) and Append's optional
// reduction (over loaded source rows), returning the freshly generated
// summary rows and the schema they (and the original frame) share.
func computeAggregateSummaries(deps Deps, frame columnar.LazyFrame, schema model.Schema, args model.AggregateArgs, runTimestamp time.Time) ([]model.Row, model.Schema, error) {
	if len(args.GroupBy) == 0 {
		return nil, nil, errs.EmptyGroupBy.New()
	}
	if len(args.Aggregations) == 0 {
		return nil, nil, errs.EmptyAggregations.New()
	}
	if err := checkNoDuplicates(args.GroupBy); err != nil {
		return nil, nil, errs.DuplicateGroupBy.New(err.Error())
	}
	aggCols := make([]string, len(args.Aggregations))
	for i, a := range args.Aggregations {
		aggCols[i] = a.Column
		if model.IsSystemColumn(a.Column) {
			return nil, nil, errs.SystemColumnConflict.New(a.Column)
		}
	}
	if err := checkNoDuplicates(aggCols); err != nil {
		return nil, nil, errs.DuplicateAggregationColumn.New(err.Error())
	}
	for _, g := range args.GroupBy {
		if _, ok := schema.Find(g); !ok {
			return nil, nil, errs.UnresolvedColumnRef.New(g)
		}
	}

	selCtx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp}
	selEval, err := compileBool(deps, args.Selector, selCtx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := frame.Rows(nil)
	if err != nil {
		return nil, nil, err
	}
	var matched []model.Row
	for _, r := range rows {
		ok, err := selEval.Eval(expr.Vars{Row: r})
		if err != nil {
			return nil, nil, err
		}
		if !ok.Null && ok.Bool {
			matched = append(matched, r)
		}
	}

	type aggSpec struct {
		column string
		eval   expr.Evaluator
		aggs   []aggNode
	}
	outSchema := schema
	specs := make([]aggSpec, 0, len(args.Aggregations))
	for _, a := range args.Aggregations {
		actx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp, AllowAggregates: true}
		ast, err := expr.Parse(a.Expression)
		if err != nil {
			return nil, nil, err
		}
		if err := expr.Validate(ast, actx); err != nil {
			return nil, nil, err
		}
		aggCalls := expr.CollectAggregates(ast)
		ourAggs := make([]aggNode, len(aggCalls))
		for i, fc := range aggCalls {
			var operandEval expr.Evaluator
			if len(fc.Args) > 0 {
				operandEval, err = expr.Lower(fc.Args[0])
				if err != nil {
					return nil, nil, err
				}
			}
			ourAggs[i] = aggNode{name: fc.Name, operand: operandEval}
		}
		eval, err := expr.Lower(ast)
		if err != nil {
			return nil, nil, err
		}
		if !outSchema.Has(a.Column) {
			outSchema = outSchema.WithColumn(model.ColumnDef{Name: a.Column, Type: ast.ResultType(), Nullable: true})
		}
		specs = append(specs, aggSpec{column: a.Column, eval: eval, aggs: ourAggs})
	}

	groups := columnar.GroupBy(matched, args.GroupBy)
	summaries := make([]model.Row, 0, len(groups))
	for _, g := range groups {
		out := model.Row{}
		for _, col := range outSchema {
			out[col.Name] = model.NullValue(col.Type)
		}
		out[model.ColRowID] = model.StringValue(rowid.New(runTimestamp))
		out[model.ColCreatedAt] = model.DateValue(runTimestamp)
		out[model.ColUpdatedAt] = model.DateValue(runTimestamp)
		out[model.ColDeleted] = model.BoolValue(false)
		if len(g.Rows) > 0 {
			out[model.ColSourceDatasetID] = g.Rows[0][model.ColSourceDatasetID]
			out[model.ColSourceTable] = g.Rows[0][model.ColSourceTable]
			if v, ok := g.Rows[0][model.ColPeriod]; ok {
				out[model.ColPeriod] = v
			}
		}
		for _, gcol := range args.GroupBy {
			out[gcol] = g.Values[gcol]
		}

		for _, spec := range specs {
			aggResults := make(map[int]model.Value, len(spec.aggs))
			for i, an := range spec.aggs {
				val, err := reduceAggregate(an.name, an.operand, g.Rows)
				if err != nil {
					return nil, nil, err
				}
				aggResults[i] = val
			}
			val, err := spec.eval.Eval(expr.Vars{Aggregates: aggResults})
			if err != nil {
				return nil, nil, err
			}
			out[spec.column] = val
		}
		summaries = append(summaries, out)
	}

	return summaries, outSchema, nil
}

type aggNode struct {
	name    string
	operand expr.Evaluator
}

func reduceAggregate(name string, operand expr.Evaluator, rows []model.Row) (model.Value, error) {
	switch name {
	case "COUNT":
		if operand == nil {
			return model.NumberValue(float64(len(rows))), nil
		}
		count := 0
		for _, r := range rows {
			v, err := operand.Eval(expr.Vars{Row: r})
			if err != nil {
				return model.Value{}, err
			}
			if !v.Null {
				count++
			}
		}
		return model.NumberValue(float64(count)), nil
	case "SUM", "AVG":
		sum := 0.0
		n := 0
		for _, r := range rows {
			v, err := operand.Eval(expr.Vars{Row: r})
			if err != nil {
				return model.Value{}, err
			}
			if v.Null {
				continue
			}
			sum += v.Num
			n++
		}
		if n == 0 {
			return model.NullValue(model.Number), nil
		}
		if name == "AVG" {
			return model.NumberValue(sum / float64(n)), nil
		}
		return model.NumberValue(sum), nil
	case "MIN_AGG", "MAX_AGG":
		var best *model.Value
		for _, r := range rows {
			v, err := operand.Eval(expr.Vars{Row: r})
			if err != nil {
				return model.Value{}, err
			}
			if v.Null {
				continue
			}
			if best == nil {
				cp := v
				best = &cp
				continue
			}
			if name == "MIN_AGG" && v.Num < best.Num {
				cp := v
				best = &cp
			}
			if name == "MAX_AGG" && v.Num > best.Num {
				cp := v
				best = &cp
			}
		}
		if best == nil {
			return model.NullValue(model.Number), nil
		}
		return *best, nil
	default:
		return model.Value{}, errs.Internal.New(fmt.Sprintf("unknown aggregate function %s", name))
	}
}

func checkNoDuplicates(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("%s", n)
		}
		seen[n] = true
	}
	return nil
}
