package model

import (
	"github.com/pkg/errors"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"
	"gopkg.in/yaml.v2"
)

// Snapshot is an immutable (project, resolver-set) pair captured at
// activation or run-creation time (spec §3 "Snapshot", §6 Metadata
// store). It crosses the metadata-store boundary as an opaque
// structured-document blob.
type Snapshot struct {
	Project   Project
	Resolvers map[string]Resolver
}

// snapshotWire is the msgpack-friendly shadow of Snapshot: model.Project
// uses unexported invariants (ordering helpers) that don't need to
// round-trip, so the wire shape is kept deliberately flat and explicit,
// the way the teacher's own wire types (driver/value.go) shadow sql.Row.
type snapshotWire struct {
	Project   Project
	Resolvers map[string]Resolver
}

// MarshalBlob encodes the snapshot as the opaque blob the metadata store
// persists (spec §6: "Complex nested values ... are serialized as an
// opaque structured-document blob").
func (s Snapshot) MarshalBlob() ([]byte, error) {
	w := snapshotWire{Project: s.Project, Resolvers: s.Resolvers}
	b, err := msgpack.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot blob")
	}
	return b, nil
}

// UnmarshalSnapshotBlob decodes a blob produced by MarshalBlob.
func UnmarshalSnapshotBlob(b []byte) (Snapshot, error) {
	var w snapshotWire
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot blob")
	}
	return Snapshot{Project: w.Project, Resolvers: w.Resolvers}, nil
}

// yamlProject/yamlResolver are human-authored fixture shapes for tests
// and local development (spec: "yaml.v2 for human-authored fixtures").
type yamlProject struct {
	ID                string            `yaml:"id"`
	InputDatasetID    string            `yaml:"input_dataset_id"`
	InputVersion      int               `yaml:"input_version"`
	Selectors         map[string]string `yaml:"selectors"`
	ResolverOverrides map[string]string `yaml:"resolver_overrides"`
}

// ParseProjectFixtureYAML loads the scalar fields of a Project from a
// YAML fixture; Operations are intentionally left to be constructed
// programmatically (they are a tagged union not worth a YAML schema for
// test fixtures).
func ParseProjectFixtureYAML(doc []byte) (Project, error) {
	var y yamlProject
	if err := yaml.Unmarshal(doc, &y); err != nil {
		return Project{}, errors.Wrap(err, "parse project fixture")
	}
	return Project{
		ID:                y.ID,
		InputDatasetID:    y.InputDatasetID,
		InputVersion:      y.InputVersion,
		Selectors:         y.Selectors,
		ResolverOverrides: y.ResolverOverrides,
	}, nil
}
