package expr

import "github.com/latticerun/engine/model"

// Position is a 1-based (line, column) source location.
type Position struct{ Line, Col int }

// Node is the AST interface every expression node satisfies. ResultType
// is populated by Validate (spec §4.1 "validate(ast, ctx) -> TypedAST").
type Node interface {
	Pos() Position
	ResultType() model.ScalarType
	setType(model.ScalarType)
}

type base struct {
	Position
	Type model.ScalarType
}

func (b base) Pos() Position                   { return b.Position }
func (b base) ResultType() model.ScalarType     { return b.Type }
func (b *base) setType(t model.ScalarType)      { b.Type = t }

// NumberLit is a numeric literal.
type NumberLit struct {
	base
	Value float64
}

// StringLit is a double-quoted string literal.
type StringLit struct {
	base
	Value string
}

// BoolLit is TRUE or FALSE.
type BoolLit struct {
	base
	Value bool
}

// DateLit is DATE("YYYY-MM-DD").
type DateLit struct {
	base
	Raw string // the unparsed "YYYY-MM-DD" literal; Validate parses it
}

// NullLit is the NULL literal.
type NullLit struct {
	base
}

// ColumnRef is `table.column` or `alias.column`, or a bare `column`
// (Table == "" means "resolve in the unqualified working schema").
type ColumnRef struct {
	base
	Table  string
	Column string
}

// BinaryOp covers arithmetic, comparison, and logical binary operators.
type BinaryOp struct {
	base
	Op          string // "+","-","*","/","=","<>","<","<=",">",">=","AND","OR"
	Left, Right Node
}

// UnaryOp covers NOT and unary minus.
type UnaryOp struct {
	base
	Op      string // "NOT", "-"
	Operand Node
}

// FuncCall is IDENT(args...). Name is canonicalized to upper-case
// because function names are case-insensitive (spec §4.1).
type FuncCall struct {
	base
	Name string
	Args []Node
	// AggIndex is assigned by CollectAggregates when Name is an
	// aggregate function; it indexes into Vars.Aggregates at Lower time.
	AggIndex int
}

func setPos(n *base, line, col int) { n.Position = Position{Line: line, Col: col} }
