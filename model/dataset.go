package model

// TableRef is a named, typed table within a Dataset (spec §3).
type TableRef struct {
	Name         string
	Columns      Schema
	TemporalMode TemporalMode
}

// FullSchema returns the table's declared columns plus its required
// system columns, the shape a data loader must return (spec §6).
func (t TableRef) FullSchema() Schema {
	out := make(Schema, 0, len(t.Columns)+3)
	out = append(out, t.Columns...)
	for _, sc := range SystemColumns(t.TemporalMode) {
		out = out.WithColumn(sc)
	}
	return out
}

// Dataset is a named, versioned schema: one main table plus zero or
// more lookup TableRefs (spec §3).
type Dataset struct {
	ID      string
	Version int
	Name    string
	Main    TableRef
	Lookups []TableRef
	// ResolverID is the dataset's default resolver, used when no
	// project override applies (spec §4.3 step 1).
	ResolverID string
	// Active mirrors the entity's activation status; V-008 requires the
	// referenced dataset to be active.
	Active bool
}

// Table returns the named table (main or lookup), or false if absent.
func (d Dataset) Table(name string) (TableRef, bool) {
	if d.Main.Name == name {
		return d.Main, true
	}
	for _, l := range d.Lookups {
		if l.Name == name {
			return l, true
		}
	}
	return TableRef{}, false
}
