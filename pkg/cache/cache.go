// Package cache stores the output of expensive external commands, chiefly
// `cargo metadata`, between runs.
//
// Three backends implement [Cache]: [FileCache] for local CLI use,
// [RedisCache] for a cache shared between CI machines, and [NullCache] when
// caching is disabled. Keys come from a [Keyer] so that callers never build
// key strings by hand.
package cache

import (
	"context"
	"time"
)

// TTLMetadata is how long `cargo metadata` output is kept by default. Entries
// are also checked against the manifests they were produced from, so the TTL
// only bounds how long an unused entry lingers.
const TTLMetadata = 24 * time.Hour

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// MetadataKey identifies the `cargo metadata` output for a workspace
	// directory, target platform and cargo version.
	MetadataKey(dir string, opts MetadataKeyOpts) string
}

// MetadataKeyOpts are the inputs besides the directory that change what
// `cargo metadata` prints.
type MetadataKeyOpts struct {
	Triple       string
	CargoVersion string

	// AllFeatures is set when the metadata was produced with --all-features,
	// whose resolve also lists every optional dependency.
	AllFeatures bool
}

// DefaultKeyer hashes key components into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// MetadataKey returns "metadata:<sha256>".
func (DefaultKeyer) MetadataKey(dir string, opts MetadataKeyOpts) string {
	features := "default-features"
	if opts.AllFeatures {
		features = "all-features"
	}
	return hashKey("metadata", dir, opts.Triple, opts.CargoVersion, features)
}
