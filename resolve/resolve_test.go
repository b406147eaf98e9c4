package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
)

func quarterMonthCalendar() model.Calendar {
	month := func(id string, y int, m time.Month) model.Period {
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return model.Period{Identifier: id, Level: "month", Start: start, End: start.AddDate(0, 1, 0), ParentID: "2024-Q4"}
	}
	return model.Calendar{
		ID:     "fiscal",
		Levels: []model.CalendarLevel{{Name: "quarter"}, {Name: "month"}},
		Periods: map[string]map[string]model.Period{
			"quarter": {
				"2024-Q4": {Identifier: "2024-Q4", Level: "quarter", Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
			"month": {
				"2024-10": month("2024-10", 2024, time.October),
				"2024-11": month("2024-11", 2024, time.November),
				"2024-12": month("2024-12", 2024, time.December),
			},
		},
		Children: map[string]map[string][]string{
			"quarter": {"2024-Q4": {"2024-10", "2024-11", "2024-12"}},
		},
	}
}

func cutoverSnapshot() Snapshot {
	return Snapshot{
		Calendars: map[string]model.Calendar{"fiscal": quarterMonthCalendar()},
		Resolvers: map[string]model.Resolver{
			"r1": {
				ID:         "r1",
				CalendarID: "fiscal",
				Active:     true,
				Rules: []model.ResolverRule{
					{
						ID:        "legacy",
						When:      "period.year < 2025",
						DataLevel: "month",
						Strategy:  model.StrategyFilesystem,
						Templates: map[string]string{"path": "legacy/{{YYYY}}/{{MM}}.csv"},
					},
					{
						ID:        "current",
						DataLevel: "month",
						Strategy:  model.StrategyFilesystem,
						Templates: map[string]string{"path": "new/{{YYYY}}/{{MM}}.parquet"},
					},
				},
			},
		},
		DatasetResolverID: map[string]string{"ledger": "r1"},
	}
}

func TestResolveQuarterToMonthCutover(t *testing.T) {
	req := iface.ResolutionRequest{
		DatasetID: "ledger",
		TableName: "orders",
		RequestedPeriod: model.Period{
			Identifier: "2024-Q4",
			Level:      "quarter",
			Start:      time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	diag, err := Resolve(cutoverSnapshot(), req)
	require.NoError(t, err)
	require.Equal(t, "legacy", diag.MatchedRuleID)
	require.Len(t, diag.Locations, 3)
	require.Equal(t, "legacy/2024/10.csv", diag.Locations[0].RenderedFields["path"])
	require.Equal(t, "legacy/2024/11.csv", diag.Locations[1].RenderedFields["path"])
	require.Equal(t, "legacy/2024/12.csv", diag.Locations[2].RenderedFields["path"])
}

func TestResolveDataLevelAny(t *testing.T) {
	snap := cutoverSnapshot()
	r := snap.Resolvers["r1"]
	r.Rules = []model.ResolverRule{{ID: "any-rule", DataLevel: model.DataLevelAny, Strategy: model.StrategyFilesystem, Templates: map[string]string{"path": "{{identifier}}.parquet"}}}
	snap.Resolvers["r1"] = r

	req := iface.ResolutionRequest{
		DatasetID:       "ledger",
		TableName:       "orders",
		RequestedPeriod: model.Period{Identifier: "2024-Q4", Level: "quarter", Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)},
	}
	diag, err := Resolve(snap, req)
	require.NoError(t, err)
	require.Len(t, diag.Locations, 1)
	require.Equal(t, "2024-Q4.parquet", diag.Locations[0].RenderedFields["path"])
}

func TestResolveNoResolverSelected(t *testing.T) {
	_, err := Resolve(Snapshot{}, iface.ResolutionRequest{DatasetID: "missing"})
	require.Error(t, err)
}

func TestResolveUnknownToken(t *testing.T) {
	snap := cutoverSnapshot()
	r := snap.Resolvers["r1"]
	r.Rules = []model.ResolverRule{{ID: "bad", DataLevel: model.DataLevelAny, Strategy: model.StrategyFilesystem, Templates: map[string]string{"path": "{{nope}}.csv"}}}
	snap.Resolvers["r1"] = r

	req := iface.ResolutionRequest{DatasetID: "ledger", RequestedPeriod: model.Period{Identifier: "2024-Q4", Level: "quarter", Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)}}
	_, err := Resolve(snap, req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}
