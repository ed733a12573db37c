package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss reports an absent or expired key. Callers treat it as
// "recompute", never as a failure.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the object cache contract shared by the memory, Redis, and
// layered backends. Values are stored JSON-encoded except plain strings,
// which go in raw; Get mirrors that on the way out.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// MGetTyped batch-reads keys and decodes each hit into T. Missing keys and
// undecodable values are simply absent from the result, so a partial cache
// never fails the read.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for key, val := range raw {
		var v T
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			continue
		}
		out[key] = v
	}
	return out, nil
}
