package cache

import (
	"context"
	"testing"
	"time"
)

func TestTieredCache_L1Hit(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	defer l1.Close()
	defer l2.Close()

	tc := NewTieredCache(l1, l2, 10*time.Second)
	defer tc.Close()

	ctx := context.Background()

	if err := tc.Set(ctx, "module:1.0.0", []byte("module-bytes"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := tc.Get(ctx, "module:1.0.0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "module-bytes" {
		t.Fatalf("expected 'module-bytes', got '%s'", string(val))
	}
}

func TestTieredCache_L2Fallthrough(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	defer l1.Close()
	defer l2.Close()

	tc := NewTieredCache(l1, l2, 10*time.Second)
	defer tc.Close()

	ctx := context.Background()

	// Simulates a second host's L1 evicting a module while Redis (L2)
	// still holds it: write only to L2, the way CacheInvalidator's
	// peers would observe after an eviction broadcast.
	if err := l2.Set(ctx, "module:1.0.0", []byte("module-bytes"), time.Minute); err != nil {
		t.Fatalf("L2 Set failed: %v", err)
	}

	val, err := tc.Get(ctx, "module:1.0.0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "module-bytes" {
		t.Fatalf("expected 'module-bytes', got '%s'", string(val))
	}

	// L2 hit should have repopulated L1, sparing the next local Load a
	// round trip to Redis.
	val, err = l1.Get(ctx, "module:1.0.0")
	if err != nil {
		t.Fatalf("L1 Get after fallthrough failed: %v", err)
	}
	if string(val) != "module-bytes" {
		t.Fatalf("expected 'module-bytes' in L1, got '%s'", string(val))
	}
}

func TestTieredCache_BothMiss(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	defer l1.Close()
	defer l2.Close()

	tc := NewTieredCache(l1, l2, 10*time.Second)
	defer tc.Close()

	ctx := context.Background()

	_, err := tc.Get(ctx, "module:9.9.9")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestTieredCache_Delete(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	defer l1.Close()
	defer l2.Close()

	tc := NewTieredCache(l1, l2, 10*time.Second)
	defer tc.Close()

	ctx := context.Background()

	tc.Set(ctx, "module:1.0.0", []byte("module-bytes"), time.Minute)

	// A republished module must evict both layers, or a host still
	// serving the stale L1 copy would hand out bytes that no longer
	// match the version the provider now resolves.
	if err := tc.Delete(ctx, "module:1.0.0"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := l1.Get(ctx, "module:1.0.0")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound in L1 after delete, got: %v", err)
	}
	_, err = l2.Get(ctx, "module:1.0.0")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound in L2 after delete, got: %v", err)
	}
}

func TestTieredCache_DefaultL1TTL(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	defer l1.Close()
	defer l2.Close()

	// buildModuleCache always passes a zero l1TTL (CacheTTL only sets
	// the outer modprovider.Cached TTL); NewTieredCache must fall back to a sane default
	// rather than caching in L1 forever.
	tc := NewTieredCache(l1, l2, 0)
	defer tc.Close()

	ctx := context.Background()
	tc.Set(ctx, "module:1.0.0", []byte("module-bytes"), time.Minute)

	val, err := tc.Get(ctx, "module:1.0.0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "module-bytes" {
		t.Fatalf("expected 'module-bytes', got '%s'", string(val))
	}
}

func TestTieredCache_CloseClosesBothLayers(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()

	tc := NewTieredCache(l1, l2, 10*time.Second)

	ctx := context.Background()
	tc.Set(ctx, "module:1.0.0", []byte("module-bytes"), time.Minute)

	// modprovider.Cached.Close calls through to here on daemon
	// shutdown; both layers must release, not just L2.
	if err := tc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := l1.Get(ctx, "module:1.0.0"); err != ErrNotFound {
		t.Fatalf("expected L1 cleared after Close, got: %v", err)
	}
}
