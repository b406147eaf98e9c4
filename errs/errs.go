// Package errs defines the fixed table of error kinds exposed on a Run
// (spec §6, "Error codes (exposed on the Run)"). Every compiler, kernel,
// resolver, or executor failure is raised through one of these kinds so
// that Run.error_detail.kind is always drawn from a closed set.
package errs

import errorkit "gopkg.in/src-d/go-errors.v1"

// Positional wraps an error with a 1-based line/column, for expression
// errors that must carry a source location (spec §4.1).
type Positional struct {
	Err        error
	Line, Col  int
}

func (p *Positional) Error() string {
	return p.Err.Error()
}

func (p *Positional) Unwrap() error {
	return p.Err
}

// AtPosition annotates err with a 1-based source position.
func AtPosition(err error, line, col int) error {
	return &Positional{Err: err, Line: line, Col: col}
}

var (
	// ExpressionSyntaxError is raised by expr.Parse on malformed source.
	ExpressionSyntaxError = errorkit.NewKind("expression syntax error: %s")

	// UnresolvedColumnRef is raised when a column/alias reference does not
	// resolve against the compilation context's schema (V-002).
	UnresolvedColumnRef = errorkit.NewKind("unresolved column reference: %s")

	// TypeMismatch is raised when an expression's inferred type does not
	// satisfy its context (V-003).
	TypeMismatch = errorkit.NewKind("type mismatch: %s")

	// UnresolvedSelectorRef is raised when a {{NAME}} token does not match
	// any key of project.selectors (V-004).
	UnresolvedSelectorRef = errorkit.NewKind("unresolved selector reference: %s")

	// CircularSelectorRef is raised when selector interpolation detects a
	// cycle in {{NAME}} expansion.
	CircularSelectorRef = errorkit.NewKind("circular selector reference: %s")

	// InvalidAggregateContext is raised when an aggregate function appears
	// outside an aggregate-permitting context, or is nested.
	InvalidAggregateContext = errorkit.NewKind("invalid aggregate context: %s")

	// ResolverSelectionError is raised when no resolver can be selected for
	// a dataset by the precedence rules (§4.3 step 1).
	ResolverSelectionError = errorkit.NewKind("no resolver selected for dataset %s")

	// HierarchyPathError is raised when the calendar has no path from the
	// requested period's level down to a rule's data_level.
	HierarchyPathError = errorkit.NewKind("no hierarchy path from %s to %s")

	// UnknownTokenError is raised when a resolver template references a
	// token that substitution cannot resolve.
	UnknownTokenError = errorkit.NewKind("unknown token %q in rule %s")

	// SchemaMismatch is raised by the data loader, or by Append when source
	// columns are not a subset of the working schema.
	SchemaMismatch = errorkit.NewKind("schema mismatch: %s")

	// DataLoadError wraps a failure from the external data loader.
	DataLoadError = errorkit.NewKind("data load failed: %s")

	// OutputWriteError wraps a failure from the external output writer.
	OutputWriteError = errorkit.NewKind("output write failed: %s")

	// DuplicateOrder is raised when two operations share an order (V-009).
	DuplicateOrder = errorkit.NewKind("duplicate operation order: %d")

	// DuplicateGroupBy is raised by Aggregate on a repeated group-by column.
	DuplicateGroupBy = errorkit.NewKind("duplicate group-by column: %s")

	// DuplicateAggregationColumn is raised by Aggregate on a repeated
	// aggregation output column name.
	DuplicateAggregationColumn = errorkit.NewKind("duplicate aggregation output column: %s")

	// SystemColumnConflict is raised when a user-defined column name
	// collides with a reserved system column.
	SystemColumnConflict = errorkit.NewKind("column name conflicts with a system column: %s")

	// EmptyGroupBy is raised when Aggregate.group_by is empty.
	EmptyGroupBy = errorkit.NewKind("aggregate requires at least one group-by column")

	// EmptyAggregations is raised when Aggregate.aggregations is empty.
	EmptyAggregations = errorkit.NewKind("aggregate requires at least one aggregation")

	// Cancelled is raised when a run is cancelled between operations.
	Cancelled = errorkit.NewKind("run cancelled")

	// Internal marks a programming-error invariant violation (§7 class 4).
	Internal = errorkit.NewKind("internal error: %s")
)

// RowNotFound is raised by the trace engine's reconstruction read path
// when no `created` event exists for a row (§4.6).
var RowNotFound = errorkit.NewKind("row not found: %s")

// StepOutOfRange is raised by reconstruction when the requested step
// exceeds the run's operation range.
var StepOutOfRange = errorkit.NewKind("step %d out of range for run %s")

// namedKinds lists every Kind alongside the short name recorded on
// Run.ErrorDetail.Kind (spec §7); order matters only in that the first
// matching Is wins, and every kind here is mutually exclusive.
var namedKinds = []struct {
	kind *errorkit.Kind
	name string
}{
	{ExpressionSyntaxError, "ExpressionSyntaxError"},
	{UnresolvedColumnRef, "UnresolvedColumnRef"},
	{TypeMismatch, "TypeMismatch"},
	{UnresolvedSelectorRef, "UnresolvedSelectorRef"},
	{CircularSelectorRef, "CircularSelectorRef"},
	{InvalidAggregateContext, "InvalidAggregateContext"},
	{ResolverSelectionError, "ResolverSelectionError"},
	{HierarchyPathError, "HierarchyPathError"},
	{UnknownTokenError, "UnknownTokenError"},
	{SchemaMismatch, "SchemaMismatch"},
	{DataLoadError, "DataLoadError"},
	{OutputWriteError, "OutputWriteError"},
	{DuplicateOrder, "DuplicateOrder"},
	{DuplicateGroupBy, "DuplicateGroupBy"},
	{DuplicateAggregationColumn, "DuplicateAggregationColumn"},
	{SystemColumnConflict, "SystemColumnConflict"},
	{EmptyGroupBy, "EmptyGroupBy"},
	{EmptyAggregations, "EmptyAggregations"},
	{Cancelled, "Cancelled"},
	{RowNotFound, "RowNotFound"},
	{StepOutOfRange, "StepOutOfRange"},
	{Internal, "Internal"},
}

// KindName returns the short name of the first registered Kind err
// matches, or "Internal" if err was not raised through this package
// (spec §7: Run.error_detail.kind is always drawn from the closed set).
func KindName(err error) string {
	for _, nk := range namedKinds {
		if nk.kind.Is(err) {
			return nk.name
		}
	}
	return "Internal"
}
