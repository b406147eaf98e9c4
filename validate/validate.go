// Package validate implements the activation validator (spec §2.H,
// §4.7): every check V-001..V-009 runs in a single pass and every
// failure is collected, never fail-fast. A project with zero failures
// is certified for activation.
package validate

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/model"
	"github.com/latticerun/engine/resolve"
)

// Failure is one collected rule violation (spec §4.7 "{rule_id, kind,
// operation_order?, detail}").
type Failure struct {
	RuleID         string
	Kind           string
	OperationOrder *int
	Detail         string
}

// Result is the outcome of one activation pass (spec §4.7 "{project_id,
// failures[]}").
type Result struct {
	ProjectID string
	Failures  []Failure
}

// Certified reports whether the pass found zero failures.
func (r Result) Certified() bool { return len(r.Failures) == 0 }

// Validate runs V-001..V-009 against project. baseSchema is the input
// dataset's declared schema (the "pinned schema" every selector and
// assignment is checked against as it evolves operation by operation,
// mirroring how the kernels themselves extend the working schema). snap
// is the resolver/calendar/dataset-activation snapshot V-006..V-008
// check against.
func Validate(project model.Project, baseSchema model.Schema, snap resolve.Snapshot, runTimestamp time.Time) Result {
	res := Result{ProjectID: project.ID}
	add := func(f Failure) { res.Failures = append(res.Failures, f) }

	checkDuplicateOrders(project, add)
	checkSelectorDefinitions(project, baseSchema, runTimestamp, add)

	schema := baseSchema
	for _, op := range project.OrderedOperations() {
		switch op.Kind {
		case model.KindUpdate:
			schema = checkUpdate(op.Order, op.Update, schema, project.Selectors, snap, runTimestamp, add)
		case model.KindDelete:
			if op.Delete != nil {
				ctx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp}
				checkBooleanExpr(op.Order, "selector", op.Delete.Selector, ctx, project.Selectors, add)
			}
		case model.KindAggregate:
			schema = checkAggregate(op.Order, op.Aggregate, schema, project.Selectors, runTimestamp, add)
		case model.KindAppend:
			checkAppend(op.Order, op.Append, snap, add)
		case model.KindOutput:
			checkOutput(op.Order, op.Output, schema, snap, project.Selectors, runTimestamp, add)
		}
	}

	return res
}

// checkDuplicateOrders implements V-009.
func checkDuplicateOrders(project model.Project, add func(Failure)) {
	seen := map[int]bool{}
	for _, op := range project.Operations {
		order := op.Order
		if seen[order] {
			add(Failure{RuleID: "V-009", Kind: "DuplicateOrder", OperationOrder: &order, Detail: fmt.Sprintf("operation order %d is duplicated", order)})
			continue
		}
		seen[order] = true
	}
}

// checkSelectorDefinitions implements V-004 (every {{NAME}} resolves, no
// cycles) and V-005 (every named selector parses as boolean) over
// project.Selectors itself, independent of where a selector is used.
func checkSelectorDefinitions(project model.Project, baseSchema model.Schema, runTimestamp time.Time, add func(Failure)) {
	for name, src := range project.Selectors {
		expanded, err := expr.InterpolateSelectors(src, project.Selectors)
		if err != nil {
			add(Failure{RuleID: "V-004", Kind: classifyName(err), Detail: fmt.Sprintf("selector %s: %s", name, err)})
			continue
		}
		ast, err := expr.Parse(expanded)
		if err != nil {
			add(Failure{RuleID: "V-001", Kind: "ExpressionSyntaxError", Detail: fmt.Sprintf("selector %s: %s", name, err)})
			continue
		}
		ctx := &expr.Context{Schema: baseSchema, RunTimestamp: runTimestamp}
		if err := expr.Validate(ast, ctx); err != nil {
			for _, e := range flatten(err) {
				ruleID, kind := classifyValidation(e)
				add(Failure{RuleID: ruleID, Kind: kind, Detail: fmt.Sprintf("selector %s: %s", name, e)})
			}
			continue
		}
		if ast.ResultType() != model.Boolean {
			add(Failure{RuleID: "V-005", Kind: "NonBooleanSelector", Detail: fmt.Sprintf("selector %s must be boolean, got %s", name, ast.ResultType())})
		}
	}
}

// checkUpdate validates a KindUpdate operation's joins, selector, and
// assignments, returning the schema extended by its assignment targets
// (spec §4.4.1, §4.4.6).
func checkUpdate(order int, args *model.UpdateArgs, schema model.Schema, selectors map[string]string, snap resolve.Snapshot, runTimestamp time.Time, add func(Failure)) model.Schema {
	if args == nil {
		return schema
	}

	joins := map[string]model.Schema{}
	seenAlias := map[string]bool{}
	for _, j := range args.Joins {
		o := order
		if seenAlias[j.Alias] {
			add(Failure{RuleID: "V-008", Kind: "DuplicateJoinAlias", OperationOrder: &o, Detail: fmt.Sprintf("duplicate join alias %s", j.Alias)})
		}
		seenAlias[j.Alias] = true

		resolverID, ok := resolve.Select(snap, j.DatasetID)
		if !ok {
			add(Failure{RuleID: "V-006", Kind: "ResolverSelectionError", OperationOrder: &o, Detail: fmt.Sprintf("no resolver reachable for join dataset %s", j.DatasetID)})
		} else if r, ok := snap.Resolvers[resolverID]; !ok || !r.Active {
			add(Failure{RuleID: "V-007", Kind: "ResolverInactive", OperationOrder: &o, Detail: fmt.Sprintf("resolver %s for join dataset %s is not active", resolverID, j.DatasetID)})
		}
		if active, ok := snap.DatasetActive[j.DatasetID]; !ok || !active {
			add(Failure{RuleID: "V-008", Kind: "DatasetInactive", OperationOrder: &o, Detail: fmt.Sprintf("join dataset %s is not active or does not exist", j.DatasetID)})
		}
		joins[j.Alias] = model.Schema{} // joined schema is unknown without loading the dataset; on_expression column refs beyond the working schema are not checked here (see DESIGN.md)
	}

	ctx := &expr.Context{Schema: schema, Joins: joins, RunTimestamp: runTimestamp}
	for _, j := range args.Joins {
		checkBooleanExpr(order, fmt.Sprintf("join %s.on_expression", j.Alias), j.OnExpression, ctx, selectors, add)
	}
	checkBooleanExpr(order, "selector", args.Selector, ctx, selectors, add)

	out := schema
	for _, a := range args.Assignments {
		actx := &expr.Context{Schema: schema, Joins: joins, RunTimestamp: runTimestamp}
		ast, ok := validateExpr(order, fmt.Sprintf("assignment %s", a.Column), a.Expression, actx, selectors, add)
		if !ok {
			continue
		}
		if !out.Has(a.Column) {
			out = out.WithColumn(model.ColumnDef{Name: a.Column, Type: ast.ResultType(), Nullable: true})
		}
	}
	return out
}

// checkAggregate validates a KindAggregate operation, returning the
// schema extended by its aggregation output columns (spec §4.4.3).
func checkAggregate(order int, args *model.AggregateArgs, schema model.Schema, selectors map[string]string, runTimestamp time.Time, add func(Failure)) model.Schema {
	if args == nil {
		return schema
	}
	o := order
	if len(args.GroupBy) == 0 {
		add(Failure{RuleID: "V-002", Kind: "EmptyGroupBy", OperationOrder: &o, Detail: "aggregate requires at least one group-by column"})
	}
	if len(args.Aggregations) == 0 {
		add(Failure{RuleID: "V-002", Kind: "EmptyAggregations", OperationOrder: &o, Detail: "aggregate requires at least one aggregation"})
	}
	for _, g := range args.GroupBy {
		if !schema.Has(g) {
			add(Failure{RuleID: "V-002", Kind: "UnresolvedColumnRef", OperationOrder: &o, Detail: fmt.Sprintf("group-by column %s does not resolve", g)})
		}
	}

	ctx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp, AllowAggregates: true}
	checkBooleanExpr(order, "selector", args.Selector, ctx, selectors, add)

	out := schema
	for _, a := range args.Aggregations {
		ast, ok := validateExpr(order, fmt.Sprintf("aggregation %s", a.Column), a.Expression, ctx, selectors, add)
		if !ok {
			continue
		}
		if model.IsSystemColumn(a.Column) {
			add(Failure{RuleID: "V-002", Kind: "SystemColumnConflict", OperationOrder: &o, Detail: fmt.Sprintf("aggregation column %s conflicts with a system column", a.Column)})
		}
		if !out.Has(a.Column) {
			out = out.WithColumn(model.ColumnDef{Name: a.Column, Type: ast.ResultType(), Nullable: true})
		}
	}
	return out
}

// checkAppend implements the resolver/activation side of a KindAppend
// operation (V-006..V-008); its selector and aggregation expressions
// reference the source dataset's own schema, which this validator — run
// without a metadata store — cannot introspect (see DESIGN.md).
func checkAppend(order int, args *model.AppendArgs, snap resolve.Snapshot, add func(Failure)) {
	if args == nil {
		return
	}
	o := order
	resolverID, ok := resolve.Select(snap, args.SourceDatasetID)
	if !ok {
		add(Failure{RuleID: "V-006", Kind: "ResolverSelectionError", OperationOrder: &o, Detail: fmt.Sprintf("no resolver reachable for dataset %s", args.SourceDatasetID)})
	} else if r, ok := snap.Resolvers[resolverID]; !ok || !r.Active {
		add(Failure{RuleID: "V-007", Kind: "ResolverInactive", OperationOrder: &o, Detail: fmt.Sprintf("resolver %s for dataset %s is not active", resolverID, args.SourceDatasetID)})
	}
	if active, ok := snap.DatasetActive[args.SourceDatasetID]; !ok || !active {
		add(Failure{RuleID: "V-008", Kind: "DatasetInactive", OperationOrder: &o, Detail: fmt.Sprintf("source dataset %s is not active", args.SourceDatasetID)})
	}
}

// checkOutput implements a KindOutput operation's selector, column, and
// destination checks (spec §4.4.5, V-006).
func checkOutput(order int, args *model.OutputArgs, schema model.Schema, snap resolve.Snapshot, selectors map[string]string, runTimestamp time.Time, add func(Failure)) {
	if args == nil {
		return
	}
	ctx := &expr.Context{Schema: schema, RunTimestamp: runTimestamp}
	checkBooleanExpr(order, "selector", args.Selector, ctx, selectors, add)

	o := order
	for _, c := range args.Columns {
		if !schema.Has(c) {
			add(Failure{RuleID: "V-002", Kind: "UnresolvedColumnRef", OperationOrder: &o, Detail: fmt.Sprintf("output column %s does not resolve", c)})
		}
	}
	if _, ok := resolve.Select(snap, args.Destination); !ok {
		add(Failure{RuleID: "V-006", Kind: "ResolverSelectionError", OperationOrder: &o, Detail: fmt.Sprintf("no resolver reachable for destination %s", args.Destination)})
	}
}

// checkBooleanExpr validates source (a selector or on_expression) and,
// if it compiles, confirms its type is boolean (V-003).
func checkBooleanExpr(order int, label, source string, ctx *expr.Context, selectors map[string]string, add func(Failure)) {
	if source == "" {
		return
	}
	ast, ok := validateExpr(order, label, source, ctx, selectors, add)
	if !ok {
		return
	}
	if ast.ResultType() != model.Boolean && ast.ResultType() != model.NullType {
		o := order
		add(Failure{RuleID: "V-003", Kind: "NonBooleanSelector", OperationOrder: &o, Detail: fmt.Sprintf("%s must be boolean, got %s", label, ast.ResultType())})
	}
}

// validateExpr expands selector tokens (V-004), parses (V-001), and
// type-checks (V-002/V-003) source, returning the typed AST on success.
func validateExpr(order int, label, source string, ctx *expr.Context, selectors map[string]string, add func(Failure)) (expr.Node, bool) {
	expanded, err := expr.InterpolateSelectors(source, selectors)
	if err != nil {
		o := order
		add(Failure{RuleID: "V-004", Kind: classifyName(err), OperationOrder: &o, Detail: fmt.Sprintf("%s: %s", label, err)})
		return nil, false
	}
	ast, err := expr.Parse(expanded)
	if err != nil {
		o := order
		add(Failure{RuleID: "V-001", Kind: "ExpressionSyntaxError", OperationOrder: &o, Detail: fmt.Sprintf("%s: %s", label, err)})
		return nil, false
	}
	if err := expr.Validate(ast, ctx); err != nil {
		o := order
		for _, e := range flatten(err) {
			ruleID, kind := classifyValidation(e)
			add(Failure{RuleID: ruleID, Kind: kind, OperationOrder: &o, Detail: fmt.Sprintf("%s: %s", label, e)})
		}
		return nil, false
	}
	return ast, true
}

// flatten unwraps a *multierror.Error (as returned by expr.Validate) into
// its individual errors, or wraps a single error in a one-element slice.
func flatten(err error) []error {
	if merr, ok := err.(*multierror.Error); ok {
		return merr.Errors
	}
	return []error{err}
}

// classifyValidation maps one expr.Validate error to its rule (V-002 for
// unresolved references, V-003 for everything else type-related) and a
// short kind label.
func classifyValidation(err error) (string, string) {
	switch {
	case errs.UnresolvedColumnRef.Is(err):
		return "V-002", "UnresolvedColumnRef"
	case errs.InvalidAggregateContext.Is(err):
		return "V-003", "InvalidAggregateContext"
	case errs.TypeMismatch.Is(err):
		return "V-003", "TypeMismatch"
	default:
		return "V-003", "ValidationError"
	}
}

func classifyName(err error) string {
	switch {
	case errs.CircularSelectorRef.Is(err):
		return "CircularSelectorRef"
	case errs.UnresolvedSelectorRef.Is(err):
		return "UnresolvedSelectorRef"
	default:
		return "SelectorError"
	}
}
