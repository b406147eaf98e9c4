package columnar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticerun/engine/model"
)

func numSchema(names ...string) model.Schema {
	out := make(model.Schema, len(names))
	for i, n := range names {
		out[i] = model.ColumnDef{Name: n, Type: model.Number}
	}
	return out
}

func numRow(col string, v float64) model.Row {
	return model.Row{col: model.NumberValue(v)}
}

func TestMaterialReturnsItsSeededRows(t *testing.T) {
	rows := []model.Row{numRow("amount", 1), numRow("amount", 2)}
	m := NewMaterial(numSchema("amount"), rows)

	got, err := m.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1.0, got[0]["amount"].Num)
	require.Equal(t, 2.0, got[1]["amount"].Num)
}

func TestFilterKeepsOnlyMatchingRows(t *testing.T) {
	rows := []model.Row{numRow("amount", 1), numRow("amount", 2), numRow("amount", 3)}
	m := NewMaterial(numSchema("amount"), rows)
	f := &Filter{Parent: m, Pred: func(r model.Row) (bool, error) { return r["amount"].Num > 1, nil }}

	got, err := f.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFilterOnEmptyResultIsStillAValidSchemaPreservingFrame(t *testing.T) {
	m := NewMaterial(numSchema("amount"), nil)
	f := &Filter{Parent: m, Pred: func(r model.Row) (bool, error) { return false, nil }}

	got, err := f.Rows(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, numSchema("amount"), f.Schema())
}

func TestProjectRestrictsToRequestedColumns(t *testing.T) {
	rows := []model.Row{{"amount": model.NumberValue(1), "region": model.StringValue("west")}}
	schema := model.Schema{{Name: "amount", Type: model.Number}, {Name: "region", Type: model.String}}
	m := NewMaterial(schema, rows)
	p := &Project{Parent: m, Columns: []string{"amount"}}

	got, err := p.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got[0], 1)
	_, hasRegion := got[0]["region"]
	require.False(t, hasRegion)
	require.Equal(t, model.Schema{{Name: "amount", Type: model.Number}}, p.Schema())
}

func TestConcatAppendsBothFramesRows(t *testing.T) {
	a := NewMaterial(numSchema("amount"), []model.Row{numRow("amount", 1)})
	b := NewMaterial(numSchema("amount"), []model.Row{numRow("amount", 2), numRow("amount", 3)})
	c := &Concat{First: a, Second: b}

	got, err := c.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestConcatUnionsSchemasAcrossBothSides(t *testing.T) {
	a := NewMaterial(model.Schema{{Name: "amount", Type: model.Number}}, nil)
	b := NewMaterial(model.Schema{{Name: "total", Type: model.Number}}, nil)
	c := &Concat{First: a, Second: b}
	require.True(t, c.Schema().Has("amount"))
	require.True(t, c.Schema().Has("total"))
}

func TestMapAppliesTransformToEveryRow(t *testing.T) {
	m := NewMaterial(numSchema("amount"), []model.Row{numRow("amount", 1), numRow("amount", 2)})
	mapped := &Map{
		Parent:    m,
		SchemaOut: numSchema("amount"),
		Fn: func(r model.Row) (model.Row, bool, error) {
			out := r.Clone()
			out["amount"] = model.NumberValue(r["amount"].Num * 10)
			return out, true, nil
		},
	}

	got, err := mapped.Rows(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10.0, got[0]["amount"].Num)
	require.Equal(t, 20.0, got[1]["amount"].Num)
}
