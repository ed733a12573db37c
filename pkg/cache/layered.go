package cache

import (
	"context"
	"io"
	"time"
)

const defaultRefillTTL = 30 * time.Second

// LayeredCache fronts a shared backend with a small in-process layer.
// Reads try memory first; backend hits are refilled into memory for at
// most RefillTTL, which bounds how long a cross-instance invalidation
// can go unseen here.
type LayeredCache struct {
	l1        *MemoryCache
	l2        Service
	refillTTL time.Duration
}

// NewLayeredCache wraps backend, normally the Redis cache, with an
// in-process layer.
func NewLayeredCache(backend Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		RefillTTL:     defaultRefillTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		l1:        NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:        backend,
		refillTTL: cfg.RefillTTL,
	}
}

// Set writes through: the backend first, memory only when that succeeds.
// The memory copy never outlives RefillTTL.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, value, lc.l1TTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.l2.Get(ctx, key, dest); err != nil {
		return err
	}

	// Refill. dest is a pointer; unwrap strings so the raw-string storage
	// convention holds in the memory layer too.
	refill := dest
	if sp, ok := dest.(*string); ok {
		refill = *sp
	}
	_ = lc.l1.Set(ctx, key, refill, lc.refillTTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.l1.DeleteByPattern(ctx, pattern)
	return lc.l2.DeleteByPattern(ctx, pattern)
}

// Exists consults the backend only; the memory layer is a subset of it.
func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.l2.Exists(ctx, keys...)
}

// Increment works on the backend so all instances share the counter.
func (lc *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	return lc.l2.Increment(ctx, key)
}

func (lc *LayeredCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	_, _ = lc.l1.Expire(ctx, key, lc.l1TTL(expiration))
	return lc.l2.Expire(ctx, key, expiration)
}

// MSet writes the backend and drops any memory copies so stale values
// cannot shadow the new ones.
func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	if err := lc.l2.MSet(ctx, values, expiration); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	_ = lc.l1.Delete(ctx, keys...)
	return nil
}

// MGet reads the backend only. Callers batching reads want one consistent
// snapshot, not a mix of layers.
func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return lc.l2.MGet(ctx, keys...)
}

// TryLock locks on the backend; a lock private to one process would not
// serialize anything.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

// Close stops the memory sweeper and closes the backend when it can be
// closed.
func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	if closer, ok := lc.l2.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (lc *LayeredCache) l1TTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.refillTTL {
		return expiration
	}
	return lc.refillTTL
}

var _ Service = (*LayeredCache)(nil)
