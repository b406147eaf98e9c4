package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/model"
	"github.com/latticerun/engine/resolve"
)

func activeSnapshot(datasetIDs ...string) resolve.Snapshot {
	active := map[string]bool{}
	resolverID := map[string]string{}
	for _, id := range datasetIDs {
		active[id] = true
		resolverID[id] = "default"
	}
	return resolve.Snapshot{
		Resolvers: map[string]model.Resolver{
			"default": {
				ID:     "default",
				Active: true,
				Rules: []model.ResolverRule{
					{ID: "r", DataLevel: model.DataLevelAny, Strategy: model.StrategyDatabase, Templates: map[string]string{"table": "{{table_name}}"}},
				},
			},
		},
		DatasetResolverID: resolverID,
		DatasetActive:     active,
		Calendars:         map[string]model.Calendar{},
	}
}

func amountSchema() model.Schema {
	out := model.Schema{{Name: "amount", Type: model.Number}}
	return append(out, model.SystemColumns(model.PeriodMode)...)
}

func TestValidateCertifiesAWellFormedProject(t *testing.T) {
	project := model.Project{
		ID: "p1",
		Operations: []model.Operation{
			{Order: 1, Kind: model.KindUpdate, Update: &model.UpdateArgs{
				Selector:    "amount > 0",
				Assignments: []model.Assignment{{Column: "amount", Expression: "amount * 2"}},
			}},
			{Order: 2, Kind: model.KindOutput, Output: &model.OutputArgs{Destination: "sink"}},
		},
	}
	res := Validate(project, amountSchema(), activeSnapshot("sink"), time.Now())
	require.True(t, res.Certified(), "%+v", res.Failures)
}

func TestValidateFlagsDuplicateOperationOrders(t *testing.T) {
	project := model.Project{
		ID: "p1",
		Operations: []model.Operation{
			{Order: 1, Kind: model.KindDelete, Delete: &model.DeleteArgs{Selector: "true"}},
			{Order: 1, Kind: model.KindOutput, Output: &model.OutputArgs{Destination: "sink"}},
		},
	}
	res := Validate(project, amountSchema(), activeSnapshot("sink"), time.Now())
	require.False(t, res.Certified())
	require.Contains(t, ruleIDs(res), "V-009")
}

func TestValidateFlagsUnresolvedSelectorReference(t *testing.T) {
	project := model.Project{
		ID: "p1",
		Operations: []model.Operation{
			{Order: 1, Kind: model.KindUpdate, Update: &model.UpdateArgs{
				Selector:    "{{missing}}",
				Assignments: []model.Assignment{{Column: "amount", Expression: "amount"}},
			}},
		},
	}
	res := Validate(project, amountSchema(), activeSnapshot(), time.Now())
	require.False(t, res.Certified())
	require.Contains(t, ruleIDs(res), "V-004")
}

func TestValidateFlagsNonBooleanNamedSelector(t *testing.T) {
	project := model.Project{
		ID:        "p1",
		Selectors: map[string]string{"bad": "amount"},
	}
	res := Validate(project, amountSchema(), activeSnapshot(), time.Now())
	require.False(t, res.Certified())
	require.Contains(t, ruleIDs(res), "V-005")
}

func TestValidateFlagsAggregateWithEmptyGroupBy(t *testing.T) {
	project := model.Project{
		ID: "p1",
		Operations: []model.Operation{
			{Order: 1, Kind: model.KindAggregate, Aggregate: &model.AggregateArgs{
				Aggregations: []model.Aggregation{{Column: "total", Expression: "SUM(amount)"}},
			}},
		},
	}
	res := Validate(project, amountSchema(), activeSnapshot(), time.Now())
	require.False(t, res.Certified())
	require.Contains(t, ruleIDs(res), "V-002")
}

func TestValidateFlagsUnreachableOutputDestination(t *testing.T) {
	project := model.Project{
		ID: "p1",
		Operations: []model.Operation{
			{Order: 1, Kind: model.KindOutput, Output: &model.OutputArgs{Destination: "nowhere"}},
		},
	}
	res := Validate(project, amountSchema(), activeSnapshot(), time.Now())
	require.False(t, res.Certified())
	require.Contains(t, ruleIDs(res), "V-006")
}

func ruleIDs(res Result) []string {
	out := make([]string, len(res.Failures))
	for i, f := range res.Failures {
		out[i] = f.RuleID
	}
	return out
}
