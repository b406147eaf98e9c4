// Package period implements the temporal filter (spec §4.2): applying
// period-exact or bitemporal-asOf semantics, plus soft-delete exclusion,
// to a loaded lazy frame.
package period

import (
	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/model"
)

// Apply wraps frame in a columnar.Filter implementing spec §4.2's
// contract: period-exact or bitemporal-asOf visibility, plus
// `_deleted = false` exclusion. Filtering is a pure lazy transform; an
// empty result is valid and the schema is unchanged (columnar.Filter
// preserves Parent.Schema()).
func Apply(frame columnar.LazyFrame, mode model.TemporalMode, asOf model.Period) columnar.LazyFrame {
	return &columnar.Filter{
		Parent: frame,
		Pred: func(row model.Row) (bool, error) {
			if deleted, ok := row[model.ColDeleted]; ok && !deleted.Null && deleted.Bool {
				return false, nil
			}
			switch mode {
			case model.PeriodMode:
				return matchesPeriod(row, asOf), nil
			case model.BitemporalMode:
				return matchesBitemporal(row, asOf), nil
			default:
				return false, nil
			}
		},
	}
}

// matchesPeriod implements `_period = period.identifier`.
func matchesPeriod(row model.Row, asOf model.Period) bool {
	v, ok := row[model.ColPeriod]
	if !ok || v.Null || v.Type != model.String {
		return false
	}
	return v.Str == asOf.Identifier
}

// matchesBitemporal implements
// `_period_from <= period.start_date AND (_period_to IS NULL OR _period_to > period.start_date)`
// (spec §4.2). Boundary behavior (spec §8): asOf exactly _period_from
// includes the row; asOf exactly _period_to excludes it.
func matchesBitemporal(row model.Row, asOf model.Period) bool {
	from, ok := row[model.ColPeriodFrom]
	if !ok || from.Null || from.Type != model.Date {
		return false
	}
	if from.Time.After(asOf.Start) {
		return false
	}
	to, ok := row[model.ColPeriodTo]
	if !ok || to.Null {
		return true
	}
	return to.Time.After(asOf.Start)
}
