package cache

import (
	"context"
	"sync"
	"time"
)

// maxEntries bounds the in-process response cache. Keys embed request
// parameters, so the key space is open ended.
const maxEntries = 4096

type entry struct {
	b   []byte
	exp time.Time
}

// TTLCache is the in-process BytesCache used when Redis is not
// configured. Expired entries are dropped on read.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry)}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.m[key]; !ok && len(c.m) >= maxEntries {
		// Drop one arbitrary entry; map order makes this a cheap
		// random eviction.
		for k := range c.m {
			delete(c.m, k)
			break
		}
	}
	c.m[key] = entry{b: value, exp: exp}
	return nil
}

var _ BytesCache = (*TTLCache)(nil)
