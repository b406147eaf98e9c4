package expr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/model"
)

// Vars is the runtime input to an Evaluator: the current row, plus any
// pre-reduced aggregate results keyed by the index CollectAggregates
// assigned (spec §4.1 "lower(typed_ast) -> ColumnarExpr").
type Vars struct {
	Row        model.Row
	Aggregates map[int]model.Value
}

// Evaluator is the lowered columnar expression: a closure over the typed
// AST that the kernels invoke per row (or, for aggregate expressions,
// once per group with pre-reduced aggregate slots filled in).
type Evaluator interface {
	Eval(v Vars) (model.Value, error)
}

type evalFunc func(v Vars) (model.Value, error)

func (f evalFunc) Eval(v Vars) (model.Value, error) { return f(v) }

// Lower maps a validated (typed) AST to an Evaluator (spec §4.1
// "lower(typed_ast) -> ColumnarExpr"). Aggregate FuncCall nodes must
// already have been assigned an index by CollectAggregates; Lower then
// treats them as opaque lookups into Vars.Aggregates rather than
// re-evaluating their operand.
func Lower(n Node) (Evaluator, error) {
	switch v := n.(type) {
	case *NumberLit:
		val := model.NumberValue(v.Value)
		return evalFunc(func(Vars) (model.Value, error) { return val, nil }), nil
	case *StringLit:
		val := model.StringValue(v.Value)
		return evalFunc(func(Vars) (model.Value, error) { return val, nil }), nil
	case *BoolLit:
		val := model.BoolValue(v.Value)
		return evalFunc(func(Vars) (model.Value, error) { return val, nil }), nil
	case *NullLit:
		val := model.NullValue(model.NullType)
		return evalFunc(func(Vars) (model.Value, error) { return val, nil }), nil
	case *DateLit:
		t, err := time.Parse("2006-01-02", v.Raw)
		if err != nil {
			return nil, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("invalid date literal %q", v.Raw)), v.Pos().Line, v.Pos().Col)
		}
		val := model.DateValue(t)
		return evalFunc(func(Vars) (model.Value, error) { return val, nil }), nil
	case *ColumnRef:
		key := v.Column
		if v.Table != "" {
			key = v.Table + "." + v.Column
		}
		colType := v.ResultType()
		return evalFunc(func(vars Vars) (model.Value, error) {
			val, ok := vars.Row[key]
			if !ok {
				return model.NullValue(colType), nil
			}
			return val, nil
		}), nil
	case *UnaryOp:
		return lowerUnary(v)
	case *BinaryOp:
		return lowerBinary(v)
	case *FuncCall:
		return lowerFuncCall(v)
	default:
		return nil, errs.Internal.New(fmt.Sprintf("unknown AST node type %T", n))
	}
}

func lowerUnary(v *UnaryOp) (Evaluator, error) {
	operand, err := Lower(v.Operand)
	if err != nil {
		return nil, err
	}
	switch v.Op {
	case "NOT":
		return evalFunc(func(vars Vars) (model.Value, error) {
			o, err := operand.Eval(vars)
			if err != nil {
				return model.Value{}, err
			}
			if o.Null {
				return model.NullValue(model.Boolean), nil
			}
			return model.BoolValue(!o.Bool), nil
		}), nil
	case "-":
		return evalFunc(func(vars Vars) (model.Value, error) {
			o, err := operand.Eval(vars)
			if err != nil {
				return model.Value{}, err
			}
			if o.Null {
				return model.NullValue(model.Number), nil
			}
			return model.NumberValue(-o.Num), nil
		}), nil
	default:
		return nil, errs.Internal.New(fmt.Sprintf("unknown unary operator %s", v.Op))
	}
}

func lowerBinary(v *BinaryOp) (Evaluator, error) {
	left, err := Lower(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := Lower(v.Right)
	if err != nil {
		return nil, err
	}
	op := v.Op
	return evalFunc(func(vars Vars) (model.Value, error) {
		l, err := left.Eval(vars)
		if err != nil {
			return model.Value{}, err
		}
		r, err := right.Eval(vars)
		if err != nil {
			return model.Value{}, err
		}
		return evalBinary(op, l, r)
	}), nil
}

func evalBinary(op string, l, r model.Value) (model.Value, error) {
	switch op {
	case "AND":
		if (!l.Null && !l.Bool) || (!r.Null && !r.Bool) {
			return model.BoolValue(false), nil
		}
		if l.Null || r.Null {
			return model.NullValue(model.Boolean), nil
		}
		return model.BoolValue(true), nil
	case "OR":
		if (!l.Null && l.Bool) || (!r.Null && r.Bool) {
			return model.BoolValue(true), nil
		}
		if l.Null || r.Null {
			return model.NullValue(model.Boolean), nil
		}
		return model.BoolValue(false), nil
	case "+", "-", "*", "/":
		if l.Null || r.Null {
			return model.NullValue(model.Number), nil
		}
		switch op {
		case "+":
			return model.NumberValue(l.Num + r.Num), nil
		case "-":
			return model.NumberValue(l.Num - r.Num), nil
		case "*":
			return model.NumberValue(l.Num * r.Num), nil
		case "/":
			if r.Num == 0 {
				return model.NullValue(model.Number), nil
			}
			return model.NumberValue(l.Num / r.Num), nil
		}
	case "=", "<>", "<", "<=", ">", ">=":
		if l.Null || r.Null {
			return model.NullValue(model.Boolean), nil
		}
		cmp, ok := compareValues(l, r)
		if !ok {
			return model.NullValue(model.Boolean), nil
		}
		switch op {
		case "=":
			return model.BoolValue(cmp == 0), nil
		case "<>":
			return model.BoolValue(cmp != 0), nil
		case "<":
			return model.BoolValue(cmp < 0), nil
		case "<=":
			return model.BoolValue(cmp <= 0), nil
		case ">":
			return model.BoolValue(cmp > 0), nil
		case ">=":
			return model.BoolValue(cmp >= 0), nil
		}
	}
	return model.Value{}, errs.Internal.New(fmt.Sprintf("unknown binary operator %s", op))
}

// compareValues returns -1/0/1 for ordered scalar types; ok is false for
// incomparable pairs (type mismatch should already have been rejected
// by Validate, so this is a defensive fallback).
func compareValues(l, r model.Value) (int, bool) {
	switch l.Type {
	case model.Number:
		if r.Type != model.Number {
			return 0, false
		}
		switch {
		case l.Num < r.Num:
			return -1, true
		case l.Num > r.Num:
			return 1, true
		default:
			return 0, true
		}
	case model.String:
		if r.Type != model.String {
			return 0, false
		}
		return strings.Compare(l.Str, r.Str), true
	case model.Boolean:
		if r.Type != model.Boolean {
			return 0, false
		}
		if l.Bool == r.Bool {
			return 0, true
		}
		if !l.Bool && r.Bool {
			return -1, true
		}
		return 1, true
	case model.Date:
		if r.Type != model.Date {
			return 0, false
		}
		switch {
		case l.Time.Before(r.Time):
			return -1, true
		case l.Time.After(r.Time):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

func lowerFuncCall(v *FuncCall) (Evaluator, error) {
	if isAggregateFunc(v.Name) {
		idx := v.AggIndex
		return evalFunc(func(vars Vars) (model.Value, error) {
			val, ok := vars.Aggregates[idx]
			if !ok {
				return model.Value{}, errs.Internal.New("aggregate value not pre-computed for index")
			}
			return val, nil
		}), nil
	}

	args := make([]Evaluator, len(v.Args))
	for i, a := range v.Args {
		ev, err := Lower(a)
		if err != nil {
			return nil, err
		}
		args[i] = ev
	}

	name := v.Name
	return evalFunc(func(vars Vars) (model.Value, error) {
		vals := make([]model.Value, len(args))
		for i, a := range args {
			val, err := a.Eval(vars)
			if err != nil {
				return model.Value{}, err
			}
			vals[i] = val
		}
		return evalScalarFunc(name, vals)
	}), nil
}

func evalScalarFunc(name string, args []model.Value) (model.Value, error) {
	switch name {
	case "IF":
		cond := args[0]
		if !cond.Null && cond.Bool {
			return args[1], nil
		}
		return args[2], nil
	case "IS_NULL":
		return model.BoolValue(args[0].Null), nil
	case "COALESCE":
		for _, a := range args {
			if !a.Null {
				return a, nil
			}
		}
		return args[len(args)-1], nil
	case "UPPER":
		if args[0].Null {
			return model.NullValue(model.String), nil
		}
		return model.StringValue(strings.ToUpper(args[0].Str)), nil
	case "LOWER":
		if args[0].Null {
			return model.NullValue(model.String), nil
		}
		return model.StringValue(strings.ToLower(args[0].Str)), nil
	case "LENGTH":
		if args[0].Null {
			return model.NullValue(model.Number), nil
		}
		return model.NumberValue(float64(len(args[0].Str))), nil
	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			if a.Null {
				return model.NullValue(model.String), nil
			}
			sb.WriteString(a.Str)
		}
		return model.StringValue(sb.String()), nil
	case "DATE_ADD":
		if args[0].Null || args[1].Null {
			return model.NullValue(model.Date), nil
		}
		days := int(math.Round(args[1].Num))
		return model.DateValue(args[0].Time.AddDate(0, 0, days)), nil
	case "DATE_DIFF":
		if args[0].Null || args[1].Null {
			return model.NullValue(model.Number), nil
		}
		d := args[0].Time.Sub(args[1].Time)
		return model.NumberValue(d.Hours() / 24), nil
	default:
		return model.Value{}, errs.Internal.New(fmt.Sprintf("unknown function %s", name))
	}
}

// CollectAggregates walks ast in evaluation order and assigns each
// distinct aggregate FuncCall node a sequential AggIndex, returning them
// in that order. The Aggregate kernel (§4.4.3) reduces each one's
// operand over a row group and feeds the results back through
// Vars.Aggregates when evaluating the outer expression.
func CollectAggregates(ast Node) []*FuncCall {
	var out []*FuncCall
	var walk func(n Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *FuncCall:
			if isAggregateFunc(v.Name) {
				v.AggIndex = len(out)
				out = append(out, v)
				return // operand is reduced separately, not walked further
			}
			for _, a := range v.Args {
				walk(a)
			}
		case *BinaryOp:
			walk(v.Left)
			walk(v.Right)
		case *UnaryOp:
			walk(v.Operand)
		}
	}
	walk(ast)
	return out
}
