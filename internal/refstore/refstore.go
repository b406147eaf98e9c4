// Package refstore is a BoltDB-backed reference implementation of
// iface.MetadataStore and iface.TraceWriter (spec §6's external trait
// boundary). It exists so the cmd/enginectl demo has a concrete,
// embedded-file collaborator to run against, the way the teacher's memory package backs sql.Engine in its
// own test suite — it is not part of the core's required scope (§1
// marks metadata persistence as an external collaborator).
package refstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"

	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/model"
)

var (
	bucketDatasets  = []byte("datasets")
	bucketResolvers = []byte("resolvers")
	bucketCalendars = []byte("calendars")
	bucketSnapshots = []byte("snapshots")
	bucketRunSlots  = []byte("run_slots")
	bucketTrace     = []byte("trace")

	allBuckets = [][]byte{bucketDatasets, bucketResolvers, bucketCalendars, bucketSnapshots, bucketRunSlots, bucketTrace}
)

// Store wraps a single BoltDB file with the buckets the reference
// implementation needs.
type Store struct {
	db *bolt.DB
}

// Open creates (or opens) the Bolt file at path and ensures every bucket
// this store uses exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func datasetKey(id string, version int) []byte {
	return []byte(fmt.Sprintf("%s/%08d", id, version))
}

// Dataset implements iface.MetadataStore.
func (s *Store) Dataset(ctx context.Context, id string, version int) (model.Dataset, error) {
	var ds model.Dataset
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketDatasets).Get(datasetKey(id, version))
		if raw == nil {
			return fmt.Errorf("refstore: dataset %s version %d not found", id, version)
		}
		return msgpack.Unmarshal(raw, &ds)
	})
	return ds, err
}

// PutDatasetVersion stores ds at its own Version field, for seeding
// fixtures directly (bypassing RegisterDataset's auto-increment).
func (s *Store) PutDatasetVersion(ctx context.Context, ds model.Dataset) error {
	raw, err := msgpack.Marshal(ds)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDatasets).Put(datasetKey(ds.ID, ds.Version), raw)
	})
}

// RegisterDataset implements iface.MetadataStore: it assigns the next
// version number for ds.ID (spec §6 "version auto-increment on update")
// and persists it.
func (s *Store) RegisterDataset(ctx context.Context, ds model.Dataset) (model.Dataset, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDatasets)
		ds.Version = nextVersion(b, ds.ID)
		raw, err := msgpack.Marshal(ds)
		if err != nil {
			return err
		}
		return b.Put(datasetKey(ds.ID, ds.Version), raw)
	})
	return ds, err
}

func nextVersion(b *bolt.Bucket, id string) int {
	prefix := []byte(id + "/")
	c := b.Cursor()
	max := 0
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		var v int
		fmt.Sscanf(string(k[len(prefix):]), "%d", &v)
		if v > max {
			max = v
		}
	}
	return max + 1
}

// Resolver implements iface.MetadataStore.
func (s *Store) Resolver(ctx context.Context, id string) (model.Resolver, error) {
	var r model.Resolver
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketResolvers).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("refstore: resolver %s not found", id)
		}
		return msgpack.Unmarshal(raw, &r)
	})
	return r, err
}

// PutResolver seeds/updates a resolver definition.
func (s *Store) PutResolver(ctx context.Context, r model.Resolver) error {
	raw, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResolvers).Put([]byte(r.ID), raw)
	})
}

// Calendar implements iface.MetadataStore.
func (s *Store) Calendar(ctx context.Context, id string) (model.Calendar, error) {
	var c model.Calendar
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCalendars).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("refstore: calendar %s not found", id)
		}
		return msgpack.Unmarshal(raw, &c)
	})
	return c, err
}

// PutCalendar seeds/updates a calendar definition.
func (s *Store) PutCalendar(ctx context.Context, cal model.Calendar) error {
	raw, err := msgpack.Marshal(cal)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCalendars).Put([]byte(cal.ID), raw)
	})
}

func slotKey(projectID, periodID string) []byte {
	return []byte(projectID + "/" + periodID)
}

// AcquireRunSlot implements iface.MetadataStore's single-active-run
// enforcement (spec §5 "Shared resource policy"). Bolt serializes all
// Update transactions against one writer, so the check-then-set below is
// atomic with respect to any other AcquireRunSlot call on this store.
func (s *Store) AcquireRunSlot(ctx context.Context, projectID, periodID string) (bool, error) {
	acquired := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunSlots)
		key := slotKey(projectID, periodID)
		if b.Get(key) != nil {
			return nil
		}
		acquired = true
		return b.Put(key, []byte{1})
	})
	return acquired, err
}

// ReleaseRunSlot implements iface.MetadataStore.
func (s *Store) ReleaseRunSlot(ctx context.Context, projectID, periodID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRunSlots).Delete(slotKey(projectID, periodID))
	})
}

// PutSnapshot implements iface.MetadataStore, persisting the snapshot via
// its own opaque-blob encoding (model.Snapshot.MarshalBlob).
func (s *Store) PutSnapshot(ctx context.Context, runID string, snap model.Snapshot) error {
	blob, err := snap.MarshalBlob()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(runID), blob)
	})
}

// Snapshot retrieves a previously persisted snapshot. Not part of
// iface.MetadataStore (no caller needs to read it back mid-run) but
// useful for tests and audit tooling built on this reference store.
func (s *Store) Snapshot(ctx context.Context, runID string) (model.Snapshot, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSnapshots).Get([]byte(runID))
		if raw == nil {
			return fmt.Errorf("refstore: snapshot %s not found", runID)
		}
		blob = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.UnmarshalSnapshotBlob(blob)
}

func traceKey(runID string, order int, rowID string) []byte {
	return []byte(fmt.Sprintf("%s/%08d/%s", runID, order, rowID))
}

// Append implements iface.TraceWriter: append-only, idempotent by
// (run_id, order, row_id) since re-writing the same key with the same
// value is a no-op from the reader's perspective (spec §6).
func (s *Store) Append(ctx context.Context, runID string, events []iface.TraceEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrace)
		for _, e := range events {
			raw, err := msgpack.Marshal(e)
			if err != nil {
				return err
			}
			if err := b.Put(traceKey(runID, e.Order, e.RowID), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Events returns every trace event recorded for runID, in key order
// (order ascending, then row_id) — the read side trace.Reconstruct
// consumes via trace.FromWire.
func (s *Store) Events(ctx context.Context, runID string) ([]iface.TraceEvent, error) {
	var out []iface.TraceEvent
	prefix := []byte(runID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTrace).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e iface.TraceEvent
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

var (
	_ iface.MetadataStore = (*Store)(nil)
	_ iface.TraceWriter   = (*Store)(nil)
)
