package cache

// ScopedKeyer wraps a Keyer with a prefix, so a cache shared across multiple
// workspaces (e.g. a single on-disk FileCache used by several `cratewright`
// invocations) can keep each workspace's entries separate.
//
// Example usage:
//
//	wsKeyer := NewScopedKeyer(NewDefaultKeyer(), "ws:"+workspaceHash+":")
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// ResolveKey generates a prefixed key for resolved-graph caching.
func (k *ScopedKeyer) ResolveKey(workspaceHash string, opts ResolveKeyOpts) string {
	return k.prefix + k.inner.ResolveKey(workspaceHash, opts)
}
