// Package columnar implements the lazy, column-oriented working frame
// every other package in this module operates over. It is the concrete
// primitive behind spec §2's "lazy frame" (see SPEC_FULL.md's EXPANDED
// MODULE MAP: the original spec treats the lazy frame as a primitive;
// this package is that primitive).
//
// A LazyFrame is a tree of deferred operators, mirroring the teacher's
// split between a logical plan (sql/plan) and its row iterator
// (sql/rowexec): nothing executes until Rows is called, and each
// operator's Rows implementation pulls from its parent(s) rather than
// holding a materialized copy.
package columnar

import (
	"context"

	"github.com/latticerun/engine/model"
)

// LazyFrame is a deferred, column-typed sequence of rows.
type LazyFrame interface {
	Schema() model.Schema
	Rows(ctx context.Context) ([]model.Row, error)
}

// Material is a LazyFrame holding already-realized rows (the leaf of
// every frame tree: the output of a data loader, or a kernel's freshly
// generated summary rows).
type Material struct {
	schema model.Schema
	rows   []model.Row
}

func NewMaterial(schema model.Schema, rows []model.Row) *Material {
	return &Material{schema: schema, rows: rows}
}

func (m *Material) Schema() model.Schema { return m.schema }

func (m *Material) Rows(ctx context.Context) ([]model.Row, error) {
	out := make([]model.Row, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// Predicate is a row-level boolean test used by Filter.
type Predicate func(row model.Row) (bool, error)

// Filter is a lazy selection over a parent frame. An empty result is a
// valid, schema-preserving frame (spec §4.2 "Empty result is valid").
type Filter struct {
	Parent LazyFrame
	Pred   Predicate
}

func (f *Filter) Schema() model.Schema { return f.Parent.Schema() }

func (f *Filter) Rows(ctx context.Context) ([]model.Row, error) {
	parentRows, err := f.Parent.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Row, 0, len(parentRows))
	for _, r := range parentRows {
		ok, err := f.Pred(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Project restricts rows to a column subset (§4.4.5 Output step 3).
type Project struct {
	Parent  LazyFrame
	Columns []string
}

func (p *Project) Schema() model.Schema {
	parentSchema := p.Parent.Schema()
	out := make(model.Schema, 0, len(p.Columns))
	for _, name := range p.Columns {
		if col, ok := parentSchema.Find(name); ok {
			out = append(out, col)
		} else {
			out = append(out, model.ColumnDef{Name: name, Type: model.Unknown, Nullable: true})
		}
	}
	return out
}

func (p *Project) Rows(ctx context.Context) ([]model.Row, error) {
	parentRows, err := p.Parent.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Row, len(parentRows))
	for i, r := range parentRows {
		nr := make(model.Row, len(p.Columns))
		for _, name := range p.Columns {
			nr[name] = r[name]
		}
		out[i] = nr
	}
	return out, nil
}

// Concat appends two frames' rows under a unified schema (used by
// Aggregate/Append to graft freshly generated rows onto the working
// frame, spec §4.4.3 step 5, §4.4.4 step 5).
type Concat struct {
	First, Second LazyFrame
}

func (c *Concat) Schema() model.Schema {
	out := c.First.Schema()
	for _, col := range c.Second.Schema() {
		out = out.WithColumn(col)
	}
	return out
}

func (c *Concat) Rows(ctx context.Context) ([]model.Row, error) {
	a, err := c.First.Rows(ctx)
	if err != nil {
		return nil, err
	}
	b, err := c.Second.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Row, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out, nil
}

// Map applies a row-to-row transform lazily (used by Update, spec
// §4.4.1).
type MapFunc func(row model.Row) (model.Row, bool, error) // (new row, changed, error)

type Map struct {
	Parent LazyFrame
	SchemaOut model.Schema
	Fn     MapFunc
}

func (m *Map) Schema() model.Schema { return m.SchemaOut }

func (m *Map) Rows(ctx context.Context) ([]model.Row, error) {
	parentRows, err := m.Parent.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Row, len(parentRows))
	for i, r := range parentRows {
		nr, _, err := m.Fn(r)
		if err != nil {
			return nil, err
		}
		out[i] = nr
	}
	return out, nil
}
