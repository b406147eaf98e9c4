// Package model holds the data-model entities of spec.md §3: Dataset,
// Project, Operation, Resolver, Calendar/Period, Run, and the row/value
// primitives shared by every other package.
package model

import "time"

// ScalarType is one of the DSL's scalar types (spec §4.1 "Typing").
type ScalarType int

const (
	Unknown ScalarType = iota
	Number
	String
	Boolean
	Date
	NullType
)

func (t ScalarType) String() string {
	switch t {
	case Number:
		return "Number"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	case Date:
		return "Date"
	case NullType:
		return "Null"
	default:
		return "Unknown"
	}
}

// Value is a tagged scalar value flowing through the columnar engine.
// The zero Value is not NULL (Null is false); use NullValue for a typed
// NULL.
type Value struct {
	Type ScalarType
	Num  float64
	Str  string
	Bool bool
	Time time.Time
	Null bool
}

// NullValue returns a NULL of the given type (type is retained for
// downstream type checks even though the value carries no data).
func NullValue(t ScalarType) Value { return Value{Type: t, Null: true} }

func NumberValue(f float64) Value  { return Value{Type: Number, Num: f} }
func StringValue(s string) Value   { return Value{Type: String, Str: s} }
func BoolValue(b bool) Value       { return Value{Type: Boolean, Bool: b} }
func DateValue(t time.Time) Value  { return Value{Type: Date, Time: t} }

// Equal reports whether two values are equal under the DSL's comparison
// semantics (NULL is never equal to anything, including NULL).
func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return false
	}
	switch v.Type {
	case Number:
		return o.Type == Number && v.Num == o.Num
	case String:
		return o.Type == String && v.Str == o.Str
	case Boolean:
		return o.Type == Boolean && v.Bool == o.Bool
	case Date:
		return o.Type == Date && v.Time.Equal(o.Time)
	default:
		return false
	}
}

// RawEqual is used by the trace engine to decide whether a column's
// value actually changed (includes NULL==NULL as unchanged, unlike the
// DSL's three-valued Equal).
func (v Value) RawEqual(o Value) bool {
	if v.Null != o.Null {
		return false
	}
	if v.Null {
		return v.Type == o.Type
	}
	return v.Equal(o)
}

// ColumnDef describes one column of a TableRef or working schema.
type ColumnDef struct {
	Name     string
	Type     ScalarType
	Nullable bool
}

// Schema is an ordered column list; names are unique within it
// (spec §3 Dataset invariant).
type Schema []ColumnDef

func (s Schema) Find(name string) (ColumnDef, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

func (s Schema) Has(name string) bool {
	_, ok := s.Find(name)
	return ok
}

// WithColumn returns a copy of s with col appended, or replacing an
// existing column of the same name.
func (s Schema) WithColumn(col ColumnDef) Schema {
	out := make(Schema, 0, len(s)+1)
	replaced := false
	for _, c := range s {
		if c.Name == col.Name {
			out = append(out, col)
			replaced = true
			continue
		}
		out = append(out, c)
	}
	if !replaced {
		out = append(out, col)
	}
	return out
}

// Row is a single record keyed by (possibly alias-qualified) column
// name. Row is the unit the columnar engine and kernels operate on.
type Row map[string]Value

// Clone returns a shallow copy of the row (Values are immutable).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// TemporalMode is the per-TableRef temporal discipline (spec §3).
type TemporalMode int

const (
	PeriodMode TemporalMode = iota
	BitemporalMode
)

// System column names, reserved per spec §3.
const (
	ColRowID          = "_row_id"
	ColDeleted        = "_deleted"
	ColCreatedAt      = "_created_at"
	ColUpdatedAt      = "_updated_at"
	ColSourceDatasetID = "_source_dataset_id"
	ColSourceTable    = "_source_table"
	ColPeriod         = "_period"
	ColPeriodFrom     = "_period_from"
	ColPeriodTo       = "_period_to"
)

// SystemColumns returns the system columns required for a table of the
// given temporal mode (spec §3 "System columns").
func SystemColumns(mode TemporalMode) Schema {
	base := Schema{
		{Name: ColRowID, Type: String, Nullable: false},
		{Name: ColDeleted, Type: Boolean, Nullable: false},
		{Name: ColCreatedAt, Type: Date, Nullable: false},
		{Name: ColUpdatedAt, Type: Date, Nullable: false},
		{Name: ColSourceDatasetID, Type: String, Nullable: false},
		{Name: ColSourceTable, Type: String, Nullable: false},
	}
	switch mode {
	case PeriodMode:
		return append(base, ColumnDef{Name: ColPeriod, Type: String, Nullable: false})
	case BitemporalMode:
		return append(base,
			ColumnDef{Name: ColPeriodFrom, Type: Date, Nullable: false},
			ColumnDef{Name: ColPeriodTo, Type: Date, Nullable: true},
		)
	default:
		return base
	}
}

// IsSystemColumn reports whether name is one of the reserved system
// columns (used by Aggregate's SystemColumnConflict check, §4.4.3).
func IsSystemColumn(name string) bool {
	switch name {
	case ColRowID, ColDeleted, ColCreatedAt, ColUpdatedAt,
		ColSourceDatasetID, ColSourceTable, ColPeriod, ColPeriodFrom, ColPeriodTo:
		return true
	default:
		return false
	}
}
