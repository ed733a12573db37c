package cache

import (
	"context"
	"time"
)

// BytesCache stores marshaled response envelopes keyed by request shape.
// Handlers replay the stored bytes verbatim on a hit.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
