package trace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/model"
)

func TestReconstructAppliesUpdatesUpToStep(t *testing.T) {
	events := []Event{
		{Order: 1, RowID: "r1", ChangeType: "created", After: model.Row{model.ColRowID: model.StringValue("r1"), "amount": model.NumberValue(100)}},
		{Order: 2, RowID: "r1", ChangeType: "updated", After: model.Row{"amount": model.NumberValue(200)}},
		{Order: 3, RowID: "r1", ChangeType: "updated", After: model.Row{"amount": model.NumberValue(300)}},
	}

	got, err := Reconstruct(events, "run-1", "r1", 2, 3)
	require.NoError(t, err)
	require.Equal(t, 200.0, got["amount"].Num, "step 2 sees the first update but not the third-order one")
}

func TestReconstructMarksDeletedWhenDeleteEventPrecedesStep(t *testing.T) {
	events := []Event{
		{Order: 1, RowID: "r1", ChangeType: "created", After: model.Row{model.ColRowID: model.StringValue("r1"), "amount": model.NumberValue(100)}},
		{Order: 2, RowID: "r1", ChangeType: "deleted"},
	}
	got, err := Reconstruct(events, "run-1", "r1", 2, 2)
	require.NoError(t, err)
	require.True(t, got[model.ColDeleted].Bool)
}

func TestReconstructIgnoresEventsAfterRequestedStep(t *testing.T) {
	events := []Event{
		{Order: 1, RowID: "r1", ChangeType: "created", After: model.Row{model.ColRowID: model.StringValue("r1"), "amount": model.NumberValue(100)}},
		{Order: 5, RowID: "r1", ChangeType: "deleted"},
	}
	got, err := Reconstruct(events, "run-1", "r1", 1, 5)
	require.NoError(t, err)
	require.False(t, got[model.ColDeleted].Bool)
}

func TestReconstructRejectsStepBeyondRunRange(t *testing.T) {
	_, err := Reconstruct(nil, "run-1", "r1", 10, 3)
	require.True(t, errs.StepOutOfRange.Is(err))
}

func TestReconstructReportsRowNotFoundWithoutACreatedEvent(t *testing.T) {
	events := []Event{
		{Order: 1, RowID: "other", ChangeType: "created", After: model.Row{model.ColRowID: model.StringValue("other")}},
	}
	_, err := Reconstruct(events, "run-1", "r1", 1, 1)
	require.True(t, errs.RowNotFound.Is(err))
}
