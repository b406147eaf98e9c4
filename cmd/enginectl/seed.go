package main

import (
	"time"

	"github.com/latticerun/engine/model"
)

// seedFixtures builds the minimal calendar/resolver/dataset/project this
// demo runs against, plus the requested Period for periodID. A real
// deployment would read all of this from the metadata store's CRUD
// surface (out of this core's scope, per spec §1); here it is
// constructed in memory purely to exercise the pipeline end to end.
func seedFixtures(periodID string) (model.Calendar, model.Resolver, model.Dataset, model.Project, model.Period) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	period := model.Period{Identifier: periodID, Level: "quarter", Start: start, End: end}

	calendar := model.Calendar{
		ID:     "fiscal",
		Levels: []model.CalendarLevel{{Name: "quarter", IdentifierPattern: "{{YYYY}}-Q{{QQ}}"}},
		Periods: map[string]map[string]model.Period{
			"quarter": {periodID: period},
		},
	}

	resolver := model.Resolver{
		ID:         "system_default",
		CalendarID: calendar.ID,
		Active:     true,
		Rules: []model.ResolverRule{
			{
				ID:        "default",
				DataLevel: model.DataLevelAny,
				Strategy:  model.StrategyDatabase,
				Templates: map[string]string{"table": "{{table_name}}"},
			},
		},
	}

	dataset := model.Dataset{
		ID:      "revenue_raw",
		Version: 1,
		Name:    "revenue_raw",
		Active:  true,
		Main: model.TableRef{
			Name:         "revenue_raw",
			TemporalMode: model.PeriodMode,
			Columns: model.Schema{
				{Name: "amount", Type: model.Number, Nullable: false},
				{Name: "region", Type: model.String, Nullable: true},
			},
		},
		ResolverID: resolver.ID,
	}

	project := model.Project{
		ID:             "demo-project",
		InputDatasetID: dataset.ID,
		InputVersion:   dataset.Version,
		Status:         model.StatusActive,
		Selectors: map[string]string{
			"large": "amount > 1000",
		},
		Operations: []model.Operation{
			{
				Order: 1,
				Kind:  model.KindUpdate,
				Update: &model.UpdateArgs{
					Selector: "{{large}}",
					Assignments: []model.Assignment{
						{Column: "amount", Expression: "amount * 1.1"},
					},
				},
			},
			{
				Order: 2,
				Kind:  model.KindOutput,
				Output: &model.OutputArgs{
					Destination: "revenue_out",
				},
			},
		},
	}

	return calendar, resolver, dataset, project, period
}

func sampleRows() []model.Row {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	return []model.Row{
		newSampleRow("row-1", 1500, "west", now),
		newSampleRow("row-2", 400, "east", now),
	}
}

func newSampleRow(id string, amount float64, region string, now time.Time) model.Row {
	return model.Row{
		"amount":                model.NumberValue(amount),
		"region":                model.StringValue(region),
		model.ColRowID:          model.StringValue(id),
		model.ColDeleted:        model.BoolValue(false),
		model.ColCreatedAt:      model.DateValue(now),
		model.ColUpdatedAt:      model.DateValue(now),
		model.ColSourceDatasetID: model.StringValue("revenue_raw"),
		model.ColSourceTable:    model.StringValue("revenue_raw"),
		model.ColPeriod:         model.StringValue("2026-Q1"),
	}
}
