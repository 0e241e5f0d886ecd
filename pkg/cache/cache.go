package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with TTL expiry. Get reports a
// miss via its bool return rather than ErrNotFound, so callers don't need a
// type switch on the common path.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer builds cache keys for the two things this system caches: crates.io
// HTTP responses (pkg/enrich) and a resolved feature graph (keyed by a hash
// of the workspace's manifests/lockfile, so an unchanged workspace never
// re-runs the fixed-point resolver).
type Keyer interface {
	// HTTPKey builds a key for an HTTP response, namespaced (e.g. "crates.io:")
	// to avoid collisions across integrations sharing one cache.
	HTTPKey(namespace, key string) string

	// ResolveKey builds a key for a resolved graph, derived from a hash of the
	// workspace's Cargo.toml/Cargo.lock content plus the options that affect
	// resolution (requested features, target, no-default-features).
	ResolveKey(workspaceHash string, opts ResolveKeyOpts) string
}

// ResolveKeyOpts captures the resolution inputs that change the outcome,
// beyond the workspace content itself.
type ResolveKeyOpts struct {
	RequestedFeatures []string
	NoDefaultFeatures bool
	Target            string
}

// DefaultKeyer is the non-prefixed Keyer implementation; wrap it with
// [NewScopedKeyer] for multi-tenant isolation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a Keyer with no namespace prefix.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

func (DefaultKeyer) ResolveKey(workspaceHash string, opts ResolveKeyOpts) string {
	return hashKey("resolve:"+workspaceHash, opts)
}
