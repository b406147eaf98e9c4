// Package resolve implements the resolver (spec §2.D, §4.3): ordered
// rule evaluation against a resolution context, calendar-driven period
// expansion, and location template rendering.
package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
)

// Snapshot bundles everything one resolution needs to be a pure
// function of (snapshot, request): the resolver set, project overrides,
// and the calendar(s) rules expand against (spec §4.3, "Determinism").
type Snapshot struct {
	Resolvers         map[string]model.Resolver // resolver_id -> Resolver
	DatasetResolverID map[string]string         // dataset_id -> default resolver_id
	ResolverOverrides map[string]string         // dataset_id -> resolver_id override
	Calendars         map[string]model.Calendar // calendar_id -> Calendar
	DatasetActive     map[string]bool           // dataset_id -> active (V-008's dependency)
}

// Resolve selects a resolver by precedence, evaluates its rules in
// order, expands the requested period through the calendar hierarchy,
// and renders the first matching rule's templates (spec §4.3 steps 1-5).
func Resolve(snap Snapshot, req iface.ResolutionRequest) (iface.ResolverDiagnostic, error) {
	resolverID, ok := selectResolver(snap, req.DatasetID)
	if !ok {
		return iface.ResolverDiagnostic{}, errs.ResolverSelectionError.New(req.DatasetID)
	}
	resolver, ok := snap.Resolvers[resolverID]
	if !ok || !resolver.Active {
		return iface.ResolverDiagnostic{}, errs.ResolverSelectionError.New(req.DatasetID)
	}

	diag := iface.ResolverDiagnostic{SelectedResolverID: resolverID}

	for _, rule := range resolver.Rules {
		matched, reason, err := evalWhen(rule, req)
		if err != nil {
			return iface.ResolverDiagnostic{}, err
		}
		diag.EvaluatedRules = append(diag.EvaluatedRules, iface.EvaluatedRule{
			RuleID: rule.ID, Matched: matched, Reason: reason,
		})
		if !matched {
			continue
		}
		diag.MatchedRuleID = rule.ID

		periods, err := expandPeriods(snap, resolver.CalendarID, req.RequestedPeriod, rule)
		if err != nil {
			return iface.ResolverDiagnostic{}, err
		}

		locs := make([]iface.ResolvedLocation, 0, len(periods))
		for _, p := range periods {
			rendered, err := renderTemplates(rule, p, req.TableName)
			if err != nil {
				return iface.ResolverDiagnostic{}, err
			}
			locs = append(locs, iface.ResolvedLocation{
				ResolverID:     resolverID,
				RuleID:         rule.ID,
				PeriodID:       p.Identifier,
				Strategy:       rule.Strategy,
				RenderedFields: rendered,
			})
		}
		diag.Locations = locs
		return diag, nil
	}

	return diag, nil
}

// Select exposes selectResolver's precedence decision to callers outside
// this package (the activation validator's V-006 needs to know which
// resolver a dataset would use without running a full resolution).
func Select(snap Snapshot, datasetID string) (string, bool) {
	return selectResolver(snap, datasetID)
}

// selectResolver implements the precedence order of spec §4.3 step 1:
// project.resolver_overrides[dataset_id] -> dataset.resolver_id ->
// system_default.
func selectResolver(snap Snapshot, datasetID string) (string, bool) {
	if id, ok := snap.ResolverOverrides[datasetID]; ok && id != "" {
		return id, true
	}
	if id, ok := snap.DatasetResolverID[datasetID]; ok && id != "" {
		return id, true
	}
	if id, ok := snap.DatasetResolverID["system_default"]; ok && id != "" {
		return id, true
	}
	return "", false
}

// evalWhen evaluates a rule's `when` expression against the resolution
// context {period.{identifier,level,year,quarter,month,start_date},
// table.name}; a missing `when` matches unconditionally (spec §4.3
// step 2).
func evalWhen(rule model.ResolverRule, req iface.ResolutionRequest) (bool, string, error) {
	if strings.TrimSpace(rule.When) == "" {
		return true, "no when clause", nil
	}

	ast, err := expr.Parse(rule.When)
	if err != nil {
		return false, "", err
	}
	ctx := &expr.Context{Joins: map[string]model.Schema{}}
	for _, c := range whenSchema() {
		parts := strings.SplitN(c.Name, ".", 2)
		ctx.Joins[parts[0]] = append(ctx.Joins[parts[0]], model.ColumnDef{Name: parts[1], Type: c.Type})
	}
	if err := expr.Validate(ast, ctx); err != nil {
		return false, "", err
	}
	eval, err := expr.Lower(ast)
	if err != nil {
		return false, "", err
	}
	val, err := eval.Eval(expr.Vars{Row: whenRow(req)})
	if err != nil {
		return false, "", err
	}
	if val.Null {
		return false, "when evaluated to NULL", nil
	}
	if val.Bool {
		return true, "when matched", nil
	}
	return false, "when did not match", nil
}

func whenSchema() model.Schema {
	return model.Schema{
		{Name: "period.identifier", Type: model.String},
		{Name: "period.level", Type: model.String},
		{Name: "period.year", Type: model.Number},
		{Name: "period.quarter", Type: model.Number},
		{Name: "period.month", Type: model.Number},
		{Name: "period.start_date", Type: model.Date},
		{Name: "table.name", Type: model.String},
	}
}

func whenRow(req iface.ResolutionRequest) model.Row {
	y, m, _ := req.RequestedPeriod.Start.Date()
	return model.Row{
		"period.identifier":  model.StringValue(req.RequestedPeriod.Identifier),
		"period.level":       model.StringValue(req.RequestedPeriod.Level),
		"period.year":        model.NumberValue(float64(y)),
		"period.quarter":     model.NumberValue(float64((int(m)-1)/3 + 1)),
		"period.month":       model.NumberValue(float64(m)),
		"period.start_date":  model.DateValue(req.RequestedPeriod.Start),
		"table.name":         model.StringValue(req.TableName),
	}
}

// expandPeriods implements spec §4.3 step 3: data_level=any returns
// exactly the requested period; otherwise traverse the calendar
// hierarchy down to data_level in calendar-defined order.
func expandPeriods(snap Snapshot, calendarID string, requested model.Period, rule model.ResolverRule) ([]model.Period, error) {
	if rule.DataLevel == model.DataLevelAny {
		return []model.Period{requested}, nil
	}
	cal, ok := snap.Calendars[calendarID]
	if !ok {
		return nil, errs.HierarchyPathError.New(requested.Level, rule.DataLevel)
	}
	periods, ok := cal.Expand(requested.Level, requested.Identifier, rule.DataLevel)
	if !ok {
		return nil, errs.HierarchyPathError.New(requested.Level, rule.DataLevel)
	}
	return periods, nil
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// renderTemplates substitutes {{YYYY}}, {{QQ}}, {{MM}}, {{identifier}}
// and {{table_name}} into every template field of rule (spec §4.3 step
// 4). These five are the only tokens recognised: tokens a calendar
// level's identifier_pattern uses are not read from the calendar. Any
// other token fails the whole resolution with UnknownTokenError naming
// the token and rule.
func renderTemplates(rule model.ResolverRule, p model.Period, tableName string) (map[string]string, error) {
	tokens := builtinTokens(p, tableName)
	out := make(map[string]string, len(rule.Templates))
	var outerErr error
	for field, tmpl := range rule.Templates {
		rendered := tokenPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
			name := tokenPattern.FindStringSubmatch(m)[1]
			if v, ok := tokens[name]; ok {
				return v
			}
			outerErr = errs.UnknownTokenError.New(name, rule.ID)
			return m
		})
		if outerErr != nil {
			return nil, outerErr
		}
		out[field] = rendered
	}
	return out, nil
}

func builtinTokens(p model.Period, tableName string) map[string]string {
	y, m, _ := p.Start.Date()
	return map[string]string{
		"YYYY":       fmt.Sprintf("%04d", y),
		"QQ":         fmt.Sprintf("%02d", (int(m)-1)/3+1),
		"MM":         fmt.Sprintf("%02d", int(m)),
		"identifier": p.Identifier,
		"table_name": tableName,
	}
}
