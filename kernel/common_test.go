package kernel

import (
	"context"
	"errors"
	"time"

	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
	"github.com/latticerun/engine/resolve"
)

// fakeMetadata is a minimal iface.MetadataStore: enough to back
// loadDataset (Update's joins, Append's source load) and Output's
// register_as_dataset step.
type fakeMetadata struct {
	datasets map[string]model.Dataset
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{datasets: make(map[string]model.Dataset)}
}

func (f *fakeMetadata) Dataset(ctx context.Context, id string, version int) (model.Dataset, error) {
	ds, ok := f.datasets[id]
	if !ok {
		return model.Dataset{}, errors.New("fakeMetadata: dataset not found: " + id)
	}
	return ds, nil
}

func (f *fakeMetadata) Resolver(ctx context.Context, id string) (model.Resolver, error) {
	return model.Resolver{}, errors.New("fakeMetadata: Resolver not implemented")
}

func (f *fakeMetadata) Calendar(ctx context.Context, id string) (model.Calendar, error) {
	return model.Calendar{}, errors.New("fakeMetadata: Calendar not implemented")
}

func (f *fakeMetadata) AcquireRunSlot(ctx context.Context, projectID, periodID string) (bool, error) {
	return true, nil
}

func (f *fakeMetadata) ReleaseRunSlot(ctx context.Context, projectID, periodID string) error {
	return nil
}

func (f *fakeMetadata) PutSnapshot(ctx context.Context, runID string, snap model.Snapshot) error {
	return nil
}

func (f *fakeMetadata) RegisterDataset(ctx context.Context, ds model.Dataset) (model.Dataset, error) {
	ds.Version++
	f.datasets[ds.ID] = ds
	return ds, nil
}

var _ iface.MetadataStore = (*fakeMetadata)(nil)

// fakeLoader returns fixed rows for a dataset's table, keyed by the
// "table" rendered field a resolved location carries.
type fakeLoader struct {
	rows map[string]iface.Rows
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{rows: make(map[string]iface.Rows)}
}

func (f *fakeLoader) seed(table string, schema model.Schema, rows []model.Row) {
	f.rows[table] = iface.Rows{Schema: schema, Rows: rows}
}

func (f *fakeLoader) Load(ctx context.Context, loc iface.ResolvedLocation, schema model.Schema) (iface.Rows, error) {
	r, ok := f.rows[loc.RenderedFields["table"]]
	if !ok {
		return iface.Rows{Schema: schema}, nil
	}
	return r, nil
}

var _ iface.DataLoader = (*fakeLoader)(nil)

// fakeWriter records every Write call for test assertions.
type fakeWriter struct {
	writes []iface.Rows
}

func (f *fakeWriter) Write(ctx context.Context, loc iface.ResolvedLocation, rows iface.Rows) (iface.WriteResult, error) {
	f.writes = append(f.writes, rows)
	names := make([]string, len(rows.Schema))
	for i, c := range rows.Schema {
		names[i] = c.Name
	}
	return iface.WriteResult{RowCount: len(rows.Rows), Columns: names}, nil
}

var _ iface.OutputWriter = (*fakeWriter)(nil)

// testSnapshot builds a resolve.Snapshot with a single always-matching,
// data_level=any resolver rule, so loadDataset resolves exactly one
// location whose "table" rendered field names tableName.
func testSnapshot(datasetID string) resolve.Snapshot {
	return resolve.Snapshot{
		Resolvers: map[string]model.Resolver{
			"default": {
				ID:     "default",
				Active: true,
				Rules: []model.ResolverRule{
					{
						ID:        "r",
						DataLevel: model.DataLevelAny,
						Strategy:  model.StrategyDatabase,
						Templates: map[string]string{"table": "{{table_name}}"},
					},
				},
			},
		},
		DatasetResolverID: map[string]string{datasetID: "default"},
		Calendars:         map[string]model.Calendar{},
	}
}

func testDeps(loader *fakeLoader, writer *fakeWriter, meta *fakeMetadata, snap resolve.Snapshot) Deps {
	return Deps{Loader: loader, Writer: writer, Metadata: meta, ResolverSnap: snap}
}

func testPeriod() model.Period {
	return model.Period{Identifier: "2026-01", Level: "month", Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
}

func baseSchema() model.Schema {
	out := model.Schema{{Name: "amount", Type: model.Number, Nullable: false}}
	return append(out, model.SystemColumns(model.PeriodMode)...)
}

func baseRow(id string, amount float64, deleted bool) model.Row {
	return model.Row{
		"amount":                 model.NumberValue(amount),
		model.ColRowID:           model.StringValue(id),
		model.ColDeleted:         model.BoolValue(deleted),
		model.ColCreatedAt:       model.DateValue(testPeriod().Start),
		model.ColUpdatedAt:       model.DateValue(testPeriod().Start),
		model.ColSourceDatasetID: model.StringValue("seed"),
		model.ColSourceTable:     model.StringValue("seed"),
		model.ColPeriod:          model.StringValue("2026-01"),
	}
}
