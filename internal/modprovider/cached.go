package modprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foldnet/gameserver/internal/cache"
	"github.com/foldnet/gameserver/internal/domain"
)

// Cached wraps a Provider with the host's generic cache.Cache
// abstraction. Module bytes for a given id are immutable, so a Load
// result can be cached indefinitely; Default is not cached since the
// operator may repoint it at any time.
type Cached struct {
	inner Provider
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps inner with c, caching Load results for ttl (0 means
// cache forever, bounded only by the underlying cache's own eviction).
func NewCached(inner Provider, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func (c *Cached) Default(ctx context.Context) (domain.ModuleId, error) {
	return c.inner.Default(ctx)
}

func (c *Cached) Load(ctx context.Context, id domain.ModuleId) ([]byte, error) {
	key := "module:" + string(id)

	if data, err := c.cache.Get(ctx, key); err == nil {
		return data, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		// Cache backend trouble shouldn't fail a load that could
		// otherwise succeed against the source of truth.
		_ = err
	}

	data, err := c.inner.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if setErr := c.cache.Set(ctx, key, data, c.ttl); setErr != nil {
		// Best-effort: an uncached load still returns correct bytes.
		_ = fmt.Errorf("modprovider: cache set failed: %w", setErr)
	}
	return data, nil
}

// Close releases the cache backend (a Redis connection, for a
// TieredCache's L2) and the wrapped provider.
func (c *Cached) Close() error {
	cacheErr := c.cache.Close()
	if innerErr := c.inner.Close(); innerErr != nil {
		return innerErr
	}
	return cacheErr
}
