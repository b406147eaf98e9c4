// Package trace implements the trace engine (spec §2.G, §4.6): for
// every non-output operation it diffs the pre- and post-kernel frames
// into row-level change events, and can reconstruct a row's state as of
// a given step from its event history.
package trace

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
)

// Event is one row-level change record (spec §4.6 "Event shape").
// Before/After carry only the columns that changed for an "updated"
// event, or the full row for a "created" event; a "deleted" event's
// Before is exactly {_deleted: false} and After is nil.
type Event struct {
	Order      int
	RowID      string
	ChangeType string // "created" | "updated" | "deleted"
	Before     model.Row
	After      model.Row
}

// Diff computes the events produced by one kernel step, comparing the
// rows present before the step ran to the rows present after (spec
// §4.6: Update/Delete emit per-row diffs; Aggregate/Append emit
// `created` for every summary/appended row).
func Diff(order int, before, after []model.Row) []Event {
	beforeIdx := make(map[string]model.Row, len(before))
	for _, r := range before {
		beforeIdx[r[model.ColRowID].Str] = r
	}

	var events []Event
	for _, a := range after {
		id := a[model.ColRowID].Str
		b, existed := beforeIdx[id]
		if !existed {
			events = append(events, Event{Order: order, RowID: id, ChangeType: "created", After: a.Clone()})
			continue
		}

		wasDeleted := !b[model.ColDeleted].Null && b[model.ColDeleted].Bool
		isDeleted := !a[model.ColDeleted].Null && a[model.ColDeleted].Bool
		if !wasDeleted && isDeleted {
			events = append(events, Event{
				Order: order, RowID: id, ChangeType: "deleted",
				Before: model.Row{model.ColDeleted: model.BoolValue(false)},
			})
			continue
		}

		changedCols := diffColumns(b, a)
		if len(changedCols) == 0 {
			continue
		}
		beforeSubset := make(model.Row, len(changedCols))
		for col := range changedCols {
			beforeSubset[col] = b[col]
		}
		events = append(events, Event{Order: order, RowID: id, ChangeType: "updated", Before: beforeSubset, After: changedCols})
	}
	return events
}

// diffColumns returns the columns of after whose value differs from
// before, using go-cmp with model.Value.RawEqual as the comparer, so a
// column that is NULL both before and after counts as unchanged (go-cmp
// would otherwise use Value.Equal, under which NULL never equals NULL).
func diffColumns(before, after model.Row) model.Row {
	opt := cmp.Comparer(model.Value.RawEqual)
	out := model.Row{}
	for col, av := range after {
		bv, ok := before[col]
		if !ok || !cmp.Equal(bv, av, opt) {
			out[col] = av
		}
	}
	return out
}

// Emit diffs before/after and appends the resulting events to writer,
// lowered to the iface.TraceEvent wire shape. A no-op diff writes
// nothing (spec §5: trace events are emitted only as a step actually
// commits changes).
func Emit(ctx context.Context, writer iface.TraceWriter, runID string, order int, before, after []model.Row) error {
	events := Diff(order, before, after)
	if len(events) == 0 {
		return nil
	}
	wire := make([]iface.TraceEvent, len(events))
	for i, e := range events {
		wire[i] = Lower(runID, e)
	}
	return writer.Append(ctx, runID, wire)
}

// Lower converts an Event to the iface.TraceEvent wire shape the
// TraceWriter boundary consumes.
func Lower(runID string, e Event) iface.TraceEvent {
	return iface.TraceEvent{
		RunID:      runID,
		Order:      e.Order,
		RowID:      e.RowID,
		ChangeType: e.ChangeType,
		Before:     plain(e.Before),
		After:      plain(e.After),
	}
}

func plain(r model.Row) map[string]interface{} {
	if r == nil {
		return nil
	}
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v model.Value) interface{} {
	if v.Null {
		return nil
	}
	switch v.Type {
	case model.Number:
		return v.Num
	case model.String:
		return v.Str
	case model.Boolean:
		return v.Bool
	case model.Date:
		return v.Time
	default:
		return nil
	}
}

// FromWire is the inverse of Lower/plain: it reconstructs Events from the
// iface.TraceEvent wire shape a TraceWriter persisted, for Reconstruct to
// replay on the read path.
func FromWire(events []iface.TraceEvent) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = Event{
			Order:      e.Order,
			RowID:      e.RowID,
			ChangeType: e.ChangeType,
			Before:     unplain(e.Before),
			After:      unplain(e.After),
		}
	}
	return out
}

func unplain(m map[string]interface{}) model.Row {
	if m == nil {
		return nil
	}
	out := make(model.Row, len(m))
	for k, v := range m {
		out[k] = unplainValue(v)
	}
	return out
}

func unplainValue(v interface{}) model.Value {
	switch t := v.(type) {
	case nil:
		return model.Value{Null: true}
	case float64:
		return model.NumberValue(t)
	case string:
		return model.StringValue(t)
	case bool:
		return model.BoolValue(t)
	case time.Time:
		return model.DateValue(t)
	default:
		return model.Value{Null: true}
	}
}
