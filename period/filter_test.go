package period

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/model"
)

func row(fields map[string]model.Value) model.Row {
	r := model.Row{
		model.ColDeleted: model.BoolValue(false),
	}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func TestApplyPeriodMode(t *testing.T) {
	rows := []model.Row{
		row(map[string]model.Value{model.ColPeriod: model.StringValue("2026-01")}),
		row(map[string]model.Value{model.ColPeriod: model.StringValue("2026-02")}),
	}
	frame := columnar.NewMaterial(nil, rows)
	filtered := Apply(frame, model.PeriodMode, model.Period{Identifier: "2026-01"})
	out, err := filtered.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestApplyBitemporalBoundaries(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := []model.Row{
		row(map[string]model.Value{
			model.ColPeriodFrom: model.DateValue(from),
			model.ColPeriodTo:   model.DateValue(to),
		}),
		row(map[string]model.Value{
			model.ColPeriodFrom: model.DateValue(to),
			model.ColPeriodTo:   model.NullValue(model.Date),
		}),
	}
	frame := columnar.NewMaterial(nil, rows)

	atFrom := Apply(frame, model.BitemporalMode, model.Period{Start: from})
	out, err := atFrom.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1, "asOf exactly _period_from includes the row")

	atTo := Apply(frame, model.BitemporalMode, model.Period{Start: to})
	out, err = atTo.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1, "asOf exactly _period_to excludes the first row but includes the open-ended second")
	require.True(t, out[0][model.ColPeriodTo].Null)
}

func TestApplyExcludesSoftDeleted(t *testing.T) {
	rows := []model.Row{
		{model.ColDeleted: model.BoolValue(true), model.ColPeriod: model.StringValue("2026-01")},
		{model.ColDeleted: model.BoolValue(false), model.ColPeriod: model.StringValue("2026-01")},
	}
	frame := columnar.NewMaterial(nil, rows)
	filtered := Apply(frame, model.PeriodMode, model.Period{Identifier: "2026-01"})
	out, err := filtered.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
}
