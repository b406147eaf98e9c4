package expr

import "github.com/latticerun/engine/model"

// funcArity constrains how many arguments a function accepts; a max of
// -1 means no upper bound.
type funcArity struct {
	min, max int
}

// aggregateFuncs is the fixed aggregate vocabulary (spec §3, §4.4.3).
var aggregateFuncs = map[string]funcArity{
	"SUM":     {1, 1},
	"COUNT":   {0, 1},
	"AVG":     {1, 1},
	"MIN_AGG": {1, 1},
	"MAX_AGG": {1, 1},
}

// scalarFuncs is the fixed non-aggregate function vocabulary (spec
// §4.1 "function call (fixed vocabulary: arithmetic, comparison,
// logical, string, date, null ...)"). Arithmetic/comparison/logical are
// handled as operators, not functions; this table covers the remaining
// string/date/null functions plus IF.
var scalarFuncs = map[string]funcArity{
	"IF":        {3, 3},
	"IS_NULL":   {1, 1},
	"COALESCE":  {1, -1},
	"UPPER":     {1, 1},
	"LOWER":     {1, 1},
	"LENGTH":    {1, 1},
	"CONCAT":    {1, -1},
	"DATE_ADD":  {2, 2},
	"DATE_DIFF": {2, 2},
}

func isAggregateFunc(name string) bool {
	_, ok := aggregateFuncs[name]
	return ok
}

func isKnownFunc(name string) bool {
	if isAggregateFunc(name) {
		return true
	}
	_, ok := scalarFuncs[name]
	return ok
}

func arityOf(name string) (funcArity, bool) {
	if a, ok := aggregateFuncs[name]; ok {
		return a, true
	}
	a, ok := scalarFuncs[name]
	return a, ok
}

// aggregateResultType returns the scalar type SUM/COUNT/AVG/MIN_AGG/
// MAX_AGG produce given the operand type (spec §4.1 "Aggregates return
// scalar type of operand (COUNT returns Number)").
func aggregateResultType(name string, operand model.ScalarType) model.ScalarType {
	if name == "COUNT" {
		return model.Number
	}
	return operand
}
