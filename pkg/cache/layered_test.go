package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newLayeredForTest(t *testing.T, opts ...LayeredOption) (*LayeredCache, *MemoryCache) {
	t.Helper()
	backend := NewMemoryCache()
	lc := NewLayeredCache(backend, opts...)
	t.Cleanup(func() { _ = lc.Close() })
	return lc, backend
}

func TestLayeredWriteThrough(t *testing.T) {
	lc, backend := newLayeredForTest(t)
	ctx := context.Background()

	if err := lc.Set(ctx, "k", snapshot{ID: "p1", Score: 7}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var direct snapshot
	if err := backend.Get(ctx, "k", &direct); err != nil {
		t.Fatalf("backend missing the value: %v", err)
	}
	var out snapshot
	if err := lc.Get(ctx, "k", &out); err != nil || out.ID != "p1" {
		t.Fatalf("layered get = %+v, %v", out, err)
	}
}

func TestLayeredRefillIsBounded(t *testing.T) {
	lc, backend := newLayeredForTest(t, WithLayeredRefillTTL(20*time.Millisecond))
	ctx := context.Background()

	// The value exists only in the backend, as if another instance wrote it.
	_ = backend.Set(ctx, "k", "v1", time.Minute)

	var s string
	if err := lc.Get(ctx, "k", &s); err != nil || s != "v1" {
		t.Fatalf("get = %q, %v", s, err)
	}
	if err := lc.l1.Get(ctx, "k", &s); err != nil {
		t.Fatalf("hit not refilled into memory: %v", err)
	}

	// Another instance replaces the value. Once the refill copy expires
	// the new value must win.
	_ = backend.Set(ctx, "k", "v2", time.Minute)
	time.Sleep(35 * time.Millisecond)

	if err := lc.Get(ctx, "k", &s); err != nil || s != "v2" {
		t.Fatalf("refill outlived its ttl: got %q, %v", s, err)
	}
}

func TestLayeredDeleteDropsBothLayers(t *testing.T) {
	lc, backend := newLayeredForTest(t)
	ctx := context.Background()

	_ = lc.Set(ctx, "k", "v", time.Minute)
	if err := lc.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var s string
	if err := backend.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("backend still has the key: %v", err)
	}
	if err := lc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("layered still has the key: %v", err)
	}
}

func TestLayeredMSetInvalidatesMemoryCopies(t *testing.T) {
	lc, _ := newLayeredForTest(t)
	ctx := context.Background()

	_ = lc.Set(ctx, "k", "old", time.Minute)
	if err := lc.MSet(ctx, map[string]interface{}{"k": "new"}, time.Minute); err != nil {
		t.Fatalf("mset: %v", err)
	}

	var s string
	if err := lc.Get(ctx, "k", &s); err != nil || s != "new" {
		t.Fatalf("stale memory copy shadowed mset: got %q, %v", s, err)
	}
}

func TestLayeredLocksLiveInBackend(t *testing.T) {
	lc, backend := newLayeredForTest(t)
	ctx := context.Background()

	ok, err := lc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock = %v, %v", ok, err)
	}
	if ok, _ := backend.TryLock(ctx, "lock", time.Minute); ok {
		t.Fatal("lock not visible in the backend")
	}
	if err := lc.Unlock(ctx, "lock"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if ok, _ := backend.TryLock(ctx, "lock", time.Minute); !ok {
		t.Fatal("lock not released in the backend")
	}
}
