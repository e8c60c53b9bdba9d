// Package cache backs the module provider's compiled-bytecode cache
// (see modprovider.Cached): a key-value store keyed by "module:<id>",
// with an in-memory implementation, a Redis-backed implementation for
// sharing across host processes, and a tiered combination of the two.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in the cache.
var ErrNotFound = errors.New("cache: key not found")

// Cache abstracts a key-value byte cache with TTL support. All
// operations are safe for concurrent use.
type Cache interface {
	// Get retrieves the value associated with key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A zero TTL means the entry
	// does not expire (or uses the implementation's default expiration).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache. It is not an error to delete
	// a key that does not exist; CacheInvalidator relies on this to
	// evict keys it never populated locally.
	Delete(ctx context.Context, key string) error

	// Close releases all resources held by the cache implementation.
	Close() error
}
