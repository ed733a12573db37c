package repository

import (
	"context"

	"PricePulse/internal/domain/models"
)

// SalesStream is a live feed of sales events. Read stays open until the
// context is canceled; transport failures surface on the error channel so
// the collector can drive Reconnect.
type SalesStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.SalesEvent, <-chan error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
}

// Publisher hands sales events to the message backend. PublishBatch keeps
// per-product ordering when the backend partitions by key.
type Publisher interface {
	Publish(ctx context.Context, e *models.SalesEvent) error
	PublishBatch(ctx context.Context, events []*models.SalesEvent) error
	Close() error
}

// Storage is the write side for ingested sales events. Reads happen
// through MarketStore; the two sides share tables, not interfaces.
type Storage interface {
	Store(ctx context.Context, e *models.SalesEvent) error
	StoreBatch(ctx context.Context, events []*models.SalesEvent) error
	Close() error
}

// Metrics records ingest counters. Implementations must be safe for
// concurrent use; the pipeline calls them from every worker.
type Metrics interface {
	RecordEventSent(backend, productID string)
	RecordError(kind string)
	RecordLastPrice(productID string, price float64)
	RecordLatency(op string, seconds float64)
}
