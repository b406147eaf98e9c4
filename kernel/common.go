// Package kernel implements the five operation kernels (spec §2.E,
// §4.4): each consumes the working lazy frame and produces a new one
// (plus, for Output, a write side effect).
package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
	"github.com/latticerun/engine/period"
	"github.com/latticerun/engine/resolve"
)

// Deps bundles the external collaborators a kernel needs beyond the
// working frame itself: dataset/resolver metadata for joins and
// appends, the data loader, the compiled-expression cache, and a
// logger. All fields are capability handles injected by the executor,
// never global state (spec §5 "Global state").
type Deps struct {
	Loader       iface.DataLoader
	Writer       iface.OutputWriter
	Metadata     iface.MetadataStore
	ResolverSnap resolve.Snapshot
	Cache        *expr.Cache
	Log          *logrus.Entry
}

func (d Deps) logger() *logrus.Entry {
	if d.Log != nil {
		return d.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// compileBool compiles source (defaulting to TRUE when empty) as a
// boolean-typed selector against schema, using the cache if present.
func compileBool(deps Deps, source string, ctx *expr.Context) (expr.Evaluator, error) {
	if source == "" {
		return constBool(true), nil
	}
	if deps.Cache != nil {
		_, eval, err := deps.Cache.CompileAndLower(source, ctx)
		return eval, err
	}
	ast, err := expr.Parse(source)
	if err != nil {
		return nil, err
	}
	if err := expr.Validate(ast, ctx); err != nil {
		return nil, err
	}
	return expr.Lower(ast)
}

type constEval bool

func (c constEval) Eval(expr.Vars) (model.Value, error) { return model.BoolValue(bool(c)), nil }

func constBool(b bool) expr.Evaluator { return constEval(b) }

// LoadDataset is the exported entry point the executor uses to load a
// project's input dataset at run start (spec §4.5, the initial working
// frame before any operation runs).
func LoadDataset(ctx context.Context, deps Deps, datasetID string, version int, runPeriod model.Period) (columnar.LazyFrame, model.Schema, error) {
	return loadDataset(ctx, deps, datasetID, &version, "", runPeriod)
}

// loadDataset resolves datasetID/tableName via the resolver, loads every
// resolved location, concatenates the results, and applies the period
// filter for temporalMode/runPeriod. Shared by the runtime-join
// sub-kernel (spec §4.4.6) and Append (spec §4.4.4).
func loadDataset(ctx context.Context, deps Deps, datasetID string, version *int, tableName string, runPeriod model.Period) (columnar.LazyFrame, model.Schema, error) {
	frame, schema, _, err := loadDatasetTable(ctx, deps, datasetID, version, tableName, runPeriod)
	return frame, schema, err
}

// loadDatasetTable is loadDataset plus the resolved table name, needed by
// Append to stamp _source_table on generated rows.
func loadDatasetTable(ctx context.Context, deps Deps, datasetID string, version *int, tableName string, runPeriod model.Period) (columnar.LazyFrame, model.Schema, string, error) {
	v := 0
	if version != nil {
		v = *version
	}
	ds, err := deps.Metadata.Dataset(ctx, datasetID, v)
	if err != nil {
		return nil, nil, "", errs.DataLoadError.New(err.Error())
	}

	var table model.TableRef
	if tableName == "" || tableName == ds.Main.Name {
		table = ds.Main
	} else {
		t, ok := ds.Table(tableName)
		if !ok {
			return nil, nil, "", errs.SchemaMismatch.New(fmt.Sprintf("table %s not found in dataset %s", tableName, datasetID))
		}
		table = t
	}

	req := iface.ResolutionRequest{DatasetID: datasetID, TableName: table.Name, RequestedPeriod: runPeriod}
	diag, err := resolve.Resolve(deps.ResolverSnap, req)
	if err != nil {
		return nil, nil, "", err
	}

	schema := table.FullSchema()
	var frame columnar.LazyFrame = columnar.NewMaterial(schema, nil)
	for _, loc := range diag.Locations {
		loaded, err := deps.Loader.Load(ctx, loc, schema)
		if err != nil {
			return nil, nil, "", errs.DataLoadError.New(err.Error())
		}
		if !schemasEqual(loaded.Schema, schema) {
			return nil, nil, "", errs.SchemaMismatch.New(fmt.Sprintf("loader returned schema for %s.%s that does not match the declared schema", datasetID, table.Name))
		}
		frame = &columnar.Concat{First: frame, Second: columnar.NewMaterial(loaded.Schema, loaded.Rows)}
	}

	filtered := period.Apply(frame, table.TemporalMode, runPeriod)
	return filtered, schema, table.Name, nil
}

func schemasEqual(a, b model.Schema) bool {
	if len(a) != len(b) {
		return false
	}
	idx := make(map[string]model.ColumnDef, len(a))
	for _, c := range a {
		idx[c.Name] = c
	}
	for _, c := range b {
		got, ok := idx[c.Name]
		if !ok || got.Type != c.Type {
			return false
		}
	}
	return true
}

// nowTimestamp exists purely so kernels never read wall-clock time
// themselves (spec §4.5 "The executor must not read wall-clock time");
// every kernel takes runTimestamp as an explicit parameter instead.
func nowTimestamp(t time.Time) time.Time { return t }
