package trace

import (
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/model"
)

// Reconstruct rebuilds rowID's state as of step n from its ordered
// event history (spec §4.6 "Reconstruction (read path)"): find the
// `created` event, apply `updated` diffs in ascending order up to n,
// and mark `_deleted=true` if a `deleted` event with order <= n exists.
// maxOrder is the run's highest operation order; n beyond it is
// errs.StepOutOfRange. A rowID with no `created` event is
// errs.RowNotFound.
func Reconstruct(events []Event, runID, rowID string, n, maxOrder int) (model.Row, error) {
	if n > maxOrder {
		return nil, errs.StepOutOfRange.New(n, runID)
	}

	ordered := make([]Event, 0, len(events))
	for _, e := range events {
		if e.RowID == rowID && e.Order <= n {
			ordered = append(ordered, e)
		}
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Order < ordered[j-1].Order; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	var row model.Row
	deleted := false
	for _, e := range ordered {
		switch e.ChangeType {
		case "created":
			row = e.After.Clone()
			deleted = false
		case "updated":
			if row == nil {
				continue
			}
			for col, v := range e.After {
				row[col] = v
			}
		case "deleted":
			deleted = true
		}
	}
	if row == nil {
		return nil, errs.RowNotFound.New(rowID)
	}
	if deleted {
		row[model.ColDeleted] = model.BoolValue(true)
	}
	return row, nil
}
