// Package cache provides pluggable byte caches for pipeline results.
//
// Two derived results are worth keeping: the enriched graph document (keyed
// by plan content and rule-table hash) and rendered artifacts (keyed by
// document content and render options). The CLI uses [FileCache] under the
// user cache directory; server deployments can point at Redis instead. A
// [NullCache] disables caching entirely.
package cache

import (
	"context"
	"time"
)

// Cache TTLs per key class. Enriched documents and artifacts are pure
// functions of their inputs, so the TTLs mostly bound disk growth.
const (
	// TTLDocument applies to enriched graph documents.
	TTLDocument = 24 * time.Hour

	// TTLArtifact applies to rendered artifacts (SVG, PNG, DOT).
	TTLArtifact = 7 * 24 * time.Hour

	// TTLNarrative applies to generated narratives; model output drifts, so
	// keep these short.
	TTLNarrative = 24 * time.Hour
)

// Cache stores derived pipeline results as opaque bytes.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL stores forever.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// ArtifactKeyOpts carries the render options that shape an artifact.
type ArtifactKeyOpts struct {
	Format   string
	Title    string
	Detailed bool
}

// Keyer builds cache keys. Implementations must be deterministic: equal
// inputs yield equal keys across processes.
type Keyer interface {
	// DocumentKey keys an enriched graph document by the plan content hash
	// and the rule-table hash.
	DocumentKey(planHash, rulesHash string) string

	// ArtifactKey keys a rendered artifact by the enriched document hash and
	// the render options.
	ArtifactKey(docHash string, opts ArtifactKeyOpts) string

	// NarrativeKey keys a generated narrative by document hash and model.
	NarrativeKey(docHash, model string) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) DocumentKey(planHash, rulesHash string) string {
	return hashKey("doc", planHash, rulesHash)
}

func (DefaultKeyer) ArtifactKey(docHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", docHash, opts)
}

func (DefaultKeyer) NarrativeKey(docHash, model string) string {
	return hashKey("narrative", docHash, model)
}

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation, e.g. when
// one cache backend serves several configurations.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) DocumentKey(planHash, rulesHash string) string {
	return k.prefix + k.inner.DocumentKey(planHash, rulesHash)
}

func (k *ScopedKeyer) ArtifactKey(docHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(docHash, opts)
}

func (k *ScopedKeyer) NarrativeKey(docHash, model string) string {
	return k.prefix + k.inner.NarrativeKey(docHash, model)
}
