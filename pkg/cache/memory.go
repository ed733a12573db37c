package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memEntry holds one cached value. Values are kept in the same encoded
// form the Redis backend writes, so a value set through one backend
// reads back identically through the other.
type memEntry struct {
	data      []byte
	expiresAt time.Time
	touched   time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is the in-process Service used when no Redis is
// configured and as the L1 of the layered cache. Keys past maxSize
// evict the least recently touched entry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	maxSize int
	janitor *time.Ticker
	done    chan struct{}
}

// NewMemoryCache builds an in-process cache and starts its expiry sweep.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*memEntry),
		maxSize: cfg.MaxSize,
		janitor: time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

// memDefaultTTL bounds entries written without an expiration, so
// counters and lock leftovers cannot pin memory forever.
const memDefaultTTL = 7 * 24 * time.Hour

func encodeValue(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = memDefaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, ok := mc.entries[key]; !ok && len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}

	now := time.Now()
	mc.entries[key] = &memEntry{
		data:      data,
		expiresAt: now.Add(expiration),
		touched:   now,
	}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	entry, ok := mc.entries[key]
	if !ok || entry.expired(time.Now()) {
		delete(mc.entries, key)
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	entry.touched = time.Now()
	data := entry.data
	mc.mu.Unlock()

	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

// DeleteByPattern supports the trailing-star form the key helpers
// produce ("signals:*"). Any other pattern is treated as an exact key.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	prefix, wild := strings.CutSuffix(pattern, "*")
	if !wild {
		delete(mc.entries, pattern)
		return nil
	}
	for key := range mc.entries {
		if strings.HasPrefix(key, prefix) {
			delete(mc.entries, key)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	for _, key := range keys {
		if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	entry, ok := mc.entries[key]
	if !ok || entry.expired(now) {
		mc.entries[key] = &memEntry{
			data:      []byte("1"),
			expiresAt: now.Add(memDefaultTTL),
			touched:   now,
		}
		return 1, nil
	}

	n, err := strconv.ParseInt(string(entry.data), 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	entry.data = strconv.AppendInt(entry.data[:0], n, 10)
	entry.touched = now
	return n, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[key]
	if !ok || entry.expired(time.Now()) {
		return false, nil
	}
	entry.expiresAt = time.Now().Add(expiration)
	return true, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for key, value := range values {
		if err := mc.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	results := make(map[string]string, len(keys))
	for _, key := range keys {
		if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
			results[key] = string(entry.data)
		}
	}
	return results, nil
}

// TryLock takes the key if it is free, mirroring SETNX on the Redis
// backend. The ttl caps how long a crashed holder blocks others.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
		return false, nil
	}
	mc.entries[key] = &memEntry{
		data:      []byte("locked"),
		expiresAt: now.Add(ttl),
		touched:   now,
	}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// evictOldest drops the least recently touched entry. Called with the
// lock held.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTouch time.Time
	for key, entry := range mc.entries {
		if oldestKey == "" || entry.touched.Before(oldestTouch) {
			oldestKey = key
			oldestTouch = entry.touched
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.janitor.C:
			now := time.Now()
			mc.mu.Lock()
			for key, entry := range mc.entries {
				if entry.expired(now) {
					delete(mc.entries, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the expiry sweep goroutine.
func (mc *MemoryCache) Close() error {
	mc.janitor.Stop()
	select {
	case <-mc.done:
	default:
		close(mc.done)
	}
	return nil
}

var _ Service = (*MemoryCache)(nil)
