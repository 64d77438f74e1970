package cache

// ScopedKeyer wraps a Keyer with a prefix so several projects or machines can
// share one Redis database without colliding.
//
// Example usage:
//
//	// Per-repository namespace on a shared CI cache
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "ci:my-repo:")
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

// MetadataKey generates a prefixed metadata key.
func (k *ScopedKeyer) MetadataKey(dir string, opts MetadataKeyOpts) string {
	return k.prefix + k.inner.MetadataKey(dir, opts)
}
