package expr

import (
	"sync"

	"github.com/cespare/xxhash"
	"github.com/mitchellh/hashstructure"
)

// cacheKeyInput is hashed with hashstructure to produce the
// compiled-expression cache key's schema-fingerprint component. Keeping
// it a small, explicit struct (rather than hashing *Context directly)
// avoids hashing RunTimestamp, which would defeat caching across runs.
type cacheKeyInput struct {
	Source          string
	Schema          []string // "name:type" pairs
	Joins           []string // "alias.name:type" pairs
	AllowAggregates bool
}

// Cache memoizes compiled (parsed+validated+lowered) expressions keyed
// by (source, schema shape, allow_aggregates). Mirrors the teacher's
// PreparedDataCache (engine.go): compilation is pure, so caching never
// changes behavior, only avoids re-parsing identical expressions across
// rows/operations/runs.
type Cache struct {
	mu    sync.Mutex
	byKey map[uint64]compiledEntry
}

type compiledEntry struct {
	structHash uint64
	eval       Evaluator
	node       Node
}

func NewCache() *Cache {
	return &Cache{byKey: make(map[uint64]compiledEntry)}
}

func schemaFingerprint(ctx *Context) cacheKeyInput {
	in := cacheKeyInput{AllowAggregates: ctx.AllowAggregates}
	for _, c := range ctx.Schema {
		in.Schema = append(in.Schema, c.Name+":"+c.Type.String())
	}
	for alias, sch := range ctx.Joins {
		for _, c := range sch {
			in.Joins = append(in.Joins, alias+"."+c.Name+":"+c.Type.String())
		}
	}
	return in
}

// firstLevelKey hashes the raw source text with xxhash: a cheap lookup
// key computed before any parsing happens.
func firstLevelKey(source string) uint64 {
	return xxhash.Sum64String(source)
}

// CompileAndLower parses, validates, and lowers source, caching the
// result keyed by (source, schema fingerprint). A cache hit still
// verifies structural identity via hashstructure before reuse, so a
// first-level xxhash collision can never return a stale compiled
// expression for a different schema shape.
func (c *Cache) CompileAndLower(source string, ctx *Context) (Node, Evaluator, error) {
	key := firstLevelKey(source)
	fp := schemaFingerprint(ctx)
	structHash, err := hashstructure.Hash(fp, nil)
	if err != nil {
		return c.compileFresh(source, ctx)
	}

	c.mu.Lock()
	entry, ok := c.byKey[key]
	c.mu.Unlock()
	if ok && entry.structHash == structHash {
		return entry.node, entry.eval, nil
	}

	node, eval, err := c.compileFresh(source, ctx)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.byKey[key] = compiledEntry{structHash: structHash, eval: eval, node: node}
	c.mu.Unlock()
	return node, eval, nil
}

func (c *Cache) compileFresh(source string, ctx *Context) (Node, Evaluator, error) {
	ast, err := Parse(source)
	if err != nil {
		return nil, nil, err
	}
	if err := Validate(ast, ctx); err != nil {
		return nil, nil, err
	}
	CollectAggregates(ast)
	eval, err := Lower(ast)
	if err != nil {
		return nil, nil, err
	}
	return ast, eval, nil
}
