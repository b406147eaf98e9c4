package columnar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/model"
)

func TestLeftJoinMergesMatchingRightRowUnderAlias(t *testing.T) {
	left := NewMaterial(
		model.Schema{{Name: "region", Type: model.String}},
		[]model.Row{{"region": model.StringValue("west")}},
	)
	right := NewMaterial(
		model.Schema{{Name: "region", Type: model.String}, {Name: "rate", Type: model.Number}},
		[]model.Row{{"region": model.StringValue("west"), "rate": model.NumberValue(2)}},
	)
	j := &LeftJoin{
		Left: left, Right: right, Alias: "fx",
		Pred: func(l, r model.Row) (bool, error) {
			return l["region"].Str == r["fx.region"].Str, nil
		},
	}

	got, err := j.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2.0, got[0]["fx.rate"].Num)
	require.True(t, j.Schema().Has("fx.rate"))
}

func TestLeftJoinKeepsNonMatchingLeftRowsWithNullAliasedColumns(t *testing.T) {
	left := NewMaterial(
		model.Schema{{Name: "region", Type: model.String}},
		[]model.Row{{"region": model.StringValue("east")}},
	)
	right := NewMaterial(
		model.Schema{{Name: "region", Type: model.String}, {Name: "rate", Type: model.Number}},
		[]model.Row{{"region": model.StringValue("west"), "rate": model.NumberValue(2)}},
	)
	j := &LeftJoin{
		Left: left, Right: right, Alias: "fx",
		Pred: func(l, r model.Row) (bool, error) {
			return l["region"].Str == r["fx.region"].Str, nil
		},
	}

	got, err := j.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1, "every left row is kept regardless of a match")
	require.True(t, got[0]["fx.rate"].Null)
}
