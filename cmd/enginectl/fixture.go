package main

import (
	"context"
	"fmt"

	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
)

// memLoader/memWriter are minimal in-process stand-ins for the object
// storage / database adapters a real deployment plugs into iface.DataLoader
// / iface.OutputWriter (spec §1 marks those adapters out of scope). They
// exist only so this demo CLI has something to read from and write to,
// the way the teacher's _example/main.go seeds a memory.Database instead
// of a real MySQL-compatible store.
type memLoader struct {
	tables map[string]iface.Rows // keyed by rendered "table" template field
}

func newMemLoader() *memLoader {
	return &memLoader{tables: make(map[string]iface.Rows)}
}

func (m *memLoader) seed(key string, rows iface.Rows) {
	m.tables[key] = rows
}

func (m *memLoader) Load(ctx context.Context, loc iface.ResolvedLocation, tableSchema model.Schema) (iface.Rows, error) {
	key := loc.RenderedFields["table"]
	rows, ok := m.tables[key]
	if !ok {
		return iface.Rows{Schema: tableSchema}, nil
	}
	return rows, nil
}

type memWriter struct {
	written map[string][]model.Row
}

func newMemWriter() *memWriter {
	return &memWriter{written: make(map[string][]model.Row)}
}

func (w *memWriter) Write(ctx context.Context, loc iface.ResolvedLocation, rows iface.Rows) (iface.WriteResult, error) {
	key := loc.RenderedFields["table"]
	w.written[key] = append(w.written[key], rows.Rows...)
	return iface.WriteResult{RowCount: len(rows.Rows), Columns: columnNames(rows.Schema)}, nil
}

func columnNames(schema model.Schema) []string {
	out := make([]string, len(schema))
	for i, c := range schema {
		out[i] = c.Name
	}
	return out
}

func (w *memWriter) dump() string {
	s := ""
	for table, rows := range w.written {
		s += fmt.Sprintf("%s: %d row(s)\n", table, len(rows))
	}
	return s
}
