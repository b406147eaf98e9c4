package expr

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/model"
)

// Validate resolves column references, type-checks, and enforces
// aggregate-context rules over ast (spec §4.1 "validate(ast, ctx) ->
// TypedAST | ValidationError"). On success every node's ResultType is
// populated in place. All errors are collected (never fail-fast),
// matching the activation validator's all-errors-collected contract
// this function feeds (§4.7).
func Validate(ast Node, ctx *Context) error {
	var merr *multierror.Error
	checkNode(ast, ctx, false, &merr)
	return merr.ErrorOrNil()
}

func addErr(merr **multierror.Error, err error) {
	*merr = multierror.Append(*merr, err)
}

func checkNode(n Node, ctx *Context, insideAgg bool, merr **multierror.Error) model.ScalarType {
	switch v := n.(type) {
	case *NumberLit:
		v.setType(model.Number)
	case *StringLit:
		v.setType(model.String)
	case *BoolLit:
		v.setType(model.Boolean)
	case *NullLit:
		v.setType(model.NullType)
	case *DateLit:
		if _, err := time.Parse("2006-01-02", v.Raw); err != nil {
			addErr(merr, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("invalid date literal %q", v.Raw)), v.Pos().Line, v.Pos().Col))
		}
		v.setType(model.Date)
	case *ColumnRef:
		col, ok := ctx.resolveColumn(v.Table, v.Column)
		if !ok {
			ref := v.Column
			if v.Table != "" {
				ref = v.Table + "." + v.Column
			}
			addErr(merr, errs.AtPosition(errs.UnresolvedColumnRef.New(ref), v.Pos().Line, v.Pos().Col))
			v.setType(model.Unknown)
			return model.Unknown
		}
		v.setType(col.Type)
	case *UnaryOp:
		operand := checkNode(v.Operand, ctx, insideAgg, merr)
		switch v.Op {
		case "NOT":
			if operand != model.Boolean && operand != model.NullType && operand != model.Unknown {
				addErr(merr, errs.AtPosition(errs.TypeMismatch.New("NOT requires a boolean operand"), v.Pos().Line, v.Pos().Col))
			}
			v.setType(model.Boolean)
		case "-":
			if operand != model.Number && operand != model.NullType && operand != model.Unknown {
				addErr(merr, errs.AtPosition(errs.TypeMismatch.New("unary - requires a numeric operand"), v.Pos().Line, v.Pos().Col))
			}
			v.setType(model.Number)
		}
	case *BinaryOp:
		left := checkNode(v.Left, ctx, insideAgg, merr)
		right := checkNode(v.Right, ctx, insideAgg, merr)
		v.setType(checkBinary(v, left, right, merr))
	case *FuncCall:
		checkFuncCall(v, ctx, insideAgg, merr)
	default:
		addErr(merr, errs.Internal.New(fmt.Sprintf("unknown AST node type %T", n)))
	}
	return n.ResultType()
}

func compatible(a, b model.ScalarType) bool {
	if a == b {
		return true
	}
	return a == model.NullType || b == model.NullType || a == model.Unknown || b == model.Unknown
}

func checkBinary(n *BinaryOp, left, right model.ScalarType, merr **multierror.Error) model.ScalarType {
	switch n.Op {
	case "+", "-", "*", "/":
		if !compatible(left, model.Number) || !compatible(right, model.Number) {
			addErr(merr, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("arithmetic operator %s requires numeric operands", n.Op)), n.Pos().Line, n.Pos().Col))
		}
		return model.Number
	case "=", "<>", "<", "<=", ">", ">=":
		if left == model.NullType || right == model.NullType {
			addErr(merr, errs.AtPosition(errs.TypeMismatch.New("comparison operands must not be NULL"), n.Pos().Line, n.Pos().Col))
		} else if !compatible(left, right) {
			addErr(merr, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("comparison operands must be the same type, got %s and %s", left, right)), n.Pos().Line, n.Pos().Col))
		}
		return model.Boolean
	case "AND", "OR":
		if !compatible(left, model.Boolean) || !compatible(right, model.Boolean) {
			addErr(merr, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("logical operator %s requires boolean operands", n.Op)), n.Pos().Line, n.Pos().Col))
		}
		return model.Boolean
	default:
		addErr(merr, errs.Internal.New(fmt.Sprintf("unknown binary operator %s", n.Op)))
		return model.Unknown
	}
}

func checkFuncCall(v *FuncCall, ctx *Context, insideAgg bool, merr **multierror.Error) {
	if !isKnownFunc(v.Name) {
		addErr(merr, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("unknown function %s", v.Name)), v.Pos().Line, v.Pos().Col))
		for _, a := range v.Args {
			checkNode(a, ctx, insideAgg, merr)
		}
		v.setType(model.Unknown)
		return
	}

	isAgg := isAggregateFunc(v.Name)
	if isAgg {
		if !ctx.AllowAggregates {
			addErr(merr, errs.AtPosition(errs.InvalidAggregateContext.New(fmt.Sprintf("%s is not permitted outside an aggregate context", v.Name)), v.Pos().Line, v.Pos().Col))
		}
		if insideAgg {
			addErr(merr, errs.AtPosition(errs.InvalidAggregateContext.New(fmt.Sprintf("nested aggregate %s", v.Name)), v.Pos().Line, v.Pos().Col))
		}
	}

	arity, _ := arityOf(v.Name)
	if len(v.Args) < arity.min || (arity.max >= 0 && len(v.Args) > arity.max) {
		addErr(merr, errs.AtPosition(errs.TypeMismatch.New(fmt.Sprintf("%s called with %d arguments", v.Name, len(v.Args))), v.Pos().Line, v.Pos().Col))
	}

	argTypes := make([]model.ScalarType, len(v.Args))
	nextInsideAgg := insideAgg || isAgg
	for i, a := range v.Args {
		argTypes[i] = checkNode(a, ctx, nextInsideAgg, merr)
	}

	switch {
	case isAgg:
		operand := model.Number
		if len(argTypes) > 0 {
			operand = argTypes[0]
		}
		v.setType(aggregateResultType(v.Name, operand))
	case v.Name == "IF":
		if len(argTypes) == 3 {
			if !compatible(argTypes[0], model.Boolean) {
				addErr(merr, errs.AtPosition(errs.TypeMismatch.New("IF condition must be boolean"), v.Pos().Line, v.Pos().Col))
			}
			if !compatible(argTypes[1], argTypes[2]) {
				addErr(merr, errs.AtPosition(errs.TypeMismatch.New("IF branches must share a type"), v.Pos().Line, v.Pos().Col))
			}
			v.setType(firstConcrete(argTypes[1], argTypes[2]))
		} else {
			v.setType(model.Unknown)
		}
	case v.Name == "IS_NULL":
		v.setType(model.Boolean)
	case v.Name == "COALESCE":
		t := model.Unknown
		for _, at := range argTypes {
			if at != model.NullType && at != model.Unknown {
				t = at
				break
			}
		}
		v.setType(t)
	case v.Name == "UPPER", v.Name == "LOWER":
		v.setType(model.String)
	case v.Name == "LENGTH":
		v.setType(model.Number)
	case v.Name == "CONCAT":
		v.setType(model.String)
	case v.Name == "DATE_ADD":
		v.setType(model.Date)
	case v.Name == "DATE_DIFF":
		v.setType(model.Number)
	default:
		v.setType(model.Unknown)
	}
}

func firstConcrete(a, b model.ScalarType) model.ScalarType {
	if a != model.NullType && a != model.Unknown {
		return a
	}
	return b
}
