// Package iface defines the external trait boundary (spec §2.I, §6):
// the interfaces the core consumes (data loading, output writing,
// metadata access, trace persistence) and the shapes it exposes
// (resolved locations, resolver diagnostics, run specifications).
// Concrete adapters (object storage, a real database, an HTTP control
// plane) live outside this module's scope; internal/refstore provides a
// reference implementation for tests.
package iface

import (
	"context"
	"time"

	"github.com/latticerun/engine/model"
)

// ResolvedLocation is one entry of a resolver invocation's output (spec
// §4.3 step 5, §6 "Resolver diagnostics").
type ResolvedLocation struct {
	ResolverID     string
	RuleID         string
	PeriodID       string
	Strategy       model.Strategy
	RenderedFields map[string]string
}

// EvaluatedRule records whether one resolver rule matched during a
// resolution, for the diagnostic trail (spec §6).
type EvaluatedRule struct {
	RuleID  string
	Matched bool
	Reason  string
}

// ResolverDiagnostic is the full record of one resolver invocation
// (spec §4.3, §6 "Resolver diagnostics").
type ResolverDiagnostic struct {
	SelectedResolverID string // empty if none was selected
	MatchedRuleID      string // empty if no rule matched
	EvaluatedRules     []EvaluatedRule
	Locations          []ResolvedLocation // nil if resolution failed
}

// ResolutionRequest is the input to the resolver (spec §4.3).
type ResolutionRequest struct {
	DatasetID       string
	TableName       string
	RequestedPeriod model.Period
}

// DataLoader is the consumed data-loading boundary (spec §6).
// Implementations must return a frame whose schema matches tableSchema
// exactly, including required system columns; mismatch is reported as
// errs.SchemaMismatch by the caller.
type DataLoader interface {
	Load(ctx context.Context, loc ResolvedLocation, tableSchema model.Schema) (Rows, error)
}

// Rows is the minimal materialized shape a DataLoader returns; kernels
// wrap it in a columnar.Material to get a LazyFrame.
type Rows struct {
	Schema model.Schema
	Rows   []model.Row
}

// WriteResult is the outcome of one OutputWriter.Write call (spec §6).
type WriteResult struct {
	RowCount int
	Columns  []string
}

// OutputWriter is the consumed output-writing boundary (spec §6).
type OutputWriter interface {
	Write(ctx context.Context, loc ResolvedLocation, rows Rows) (WriteResult, error)
}

// MetadataStore is the consumed metadata-access boundary (spec §6):
// CRUD over entities, version auto-increment, single-active-run
// enforcement, and snapshot capture. The core only ever calls the
// methods it needs at run time; full entity CRUD is an external
// collaborator's concern (spec §1) and is represented here only to the
// extent the executor consumes it.
type MetadataStore interface {
	// Dataset returns the dataset pinned by (id, version).
	Dataset(ctx context.Context, id string, version int) (model.Dataset, error)
	// Resolver returns the named resolver.
	Resolver(ctx context.Context, id string) (model.Resolver, error)
	// Calendar returns the named calendar.
	Calendar(ctx context.Context, id string) (model.Calendar, error)
	// AcquireRunSlot enforces "at most one active run per (project_id,
	// period_id)" (spec §5 "Shared resource policy"); it returns false if
	// a run is already queued or running for that pair.
	AcquireRunSlot(ctx context.Context, projectID, periodID string) (bool, error)
	// ReleaseRunSlot frees a slot acquired by AcquireRunSlot.
	ReleaseRunSlot(ctx context.Context, projectID, periodID string) error
	// PutSnapshot persists an immutable (project, resolver-set) snapshot.
	PutSnapshot(ctx context.Context, runID string, snap model.Snapshot) error
	// RegisterDataset registers a new (or new-versioned) dataset entity,
	// as triggered by an `output` operation's register_as_dataset (spec
	// §4.4.5 step 4).
	RegisterDataset(ctx context.Context, ds model.Dataset) (model.Dataset, error)
}

// TraceWriter is the consumed trace-persistence boundary (spec §6):
// append-only, idempotent by (run_id, order, row_id).
type TraceWriter interface {
	Append(ctx context.Context, runID string, events []TraceEvent) error
}

// TraceEvent is the wire shape of one row-level change event (spec
// §4.6 "Event shape"). The trace package's richer Event type is lowered
// to this shape at the TraceWriter boundary.
type TraceEvent struct {
	RunID      string
	Order      int
	RowID      string
	ChangeType string // "created" | "updated" | "deleted"
	Before     map[string]interface{}
	After      map[string]interface{}
}

// RunSpec is the exposed run-creation input (spec §6 "Run specification").
type RunSpec struct {
	RunID                 string
	ProjectSnapshot        model.Project
	Period                 model.Period
	RunTimestamp           time.Time
	SandboxOutputOverride  *string
}
