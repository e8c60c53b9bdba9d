package cache

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryCache_SetAndGet(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Fatalf("expected 'value1', got '%s'", string(val))
	}
}

func TestInMemoryCache_GetMissing(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()

	_, err := c.Get(ctx, "nonexistent")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "expiring", []byte("value"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "expiring")
	if err != nil {
		t.Fatalf("Get failed immediately after set: %v", err)
	}
	if string(val) != "value" {
		t.Fatalf("expected 'value', got '%s'", string(val))
	}

	time.Sleep(20 * time.Millisecond)

	_, err = c.Get(ctx, "expiring")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got: %v", err)
	}
}

func TestInMemoryCache_Delete(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()

	c.Set(ctx, "del-key", []byte("value"), time.Minute)

	if err := c.Delete(ctx, "del-key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := c.Get(ctx, "del-key")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}

	// Delete non-existent key should not error
	if err := c.Delete(ctx, "nonexistent"); err != nil {
		t.Fatalf("Delete non-existent should not fail: %v", err)
	}
}

func TestInMemoryCache_ValueIsolation(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()

	original := []byte("module-bytes")
	c.Set(ctx, "module:1.0.0", original, time.Minute)

	// Mutate the slice passed to Set - should not affect the cached copy.
	original[0] = 'X'

	val, _ := c.Get(ctx, "module:1.0.0")
	if string(val) != "module-bytes" {
		t.Fatal("cache should store a copy, not reference to original slice")
	}

	// Mutate the slice returned from Get - should not affect the cached copy.
	val[0] = 'Z'
	val2, _ := c.Get(ctx, "module:1.0.0")
	if string(val2) != "module-bytes" {
		t.Fatal("cache should return a copy, not reference to internal slice")
	}
}

func TestInMemoryCache_ZeroTTL(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()

	// Module bytes are immutable once published, so modprovider.Cached
	// passes a zero TTL when its own configured TTL is unset, meaning
	// "never expire".
	if err := c.Set(ctx, "module:1.0.0", []byte("module-bytes"), 0); err != nil {
		t.Fatalf("Set with zero TTL failed: %v", err)
	}

	val, err := c.Get(ctx, "module:1.0.0")
	if err != nil {
		t.Fatalf("Get with zero TTL failed: %v", err)
	}
	if string(val) != "module-bytes" {
		t.Fatalf("expected 'module-bytes', got '%s'", string(val))
	}
}

func TestInMemoryCache_CloseStopsServingNewWrites(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "module:1.0.0", []byte("module-bytes"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Close drops the backing map (modprovider.Cached.Close calls this
	// on daemon shutdown); a Set afterward must not panic, and the
	// entry is gone.
	if err := c.Set(ctx, "module:2.0.0", []byte("module-bytes"), time.Minute); err != nil {
		t.Fatalf("Set after Close returned an error: %v", err)
	}
	if _, err := c.Get(ctx, "module:1.0.0"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for entry present before Close, got: %v", err)
	}
}
