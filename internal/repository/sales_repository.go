package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PricePulse/internal/domain/models"
	"PricePulse/internal/domain/repository"
	pkgkafka "PricePulse/pkg/kafka"
)

// CHSalesStorage implements Storage for ClickHouse.
type CHSalesStorage struct {
	db     *sql.DB
	table  string
	source string // provenance tag written with every row
}

// NewCHSalesStorage creates ClickHouse sales storage writing rows tagged
// with the given source ("orderfeed", "simulator").
func NewCHSalesStorage(db *sql.DB, table, source string) repository.Storage {
	return &CHSalesStorage{db: db, table: table, source: source}
}

func (s *CHSalesStorage) Store(ctx context.Context, e *models.SalesEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, product_id, units, price, source, event_id) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	// event_id is deterministic per product and timestamp so replays
	// share an identity and can be deduplicated downstream.
	eventID := fmt.Sprintf("%s-%d", e.ProductID, e.Timestamp)
	_, err := s.db.ExecContext(ctx, q,
		time.Unix(e.Timestamp, 0),
		e.ProductID,
		e.Units,
		e.Price,
		s.source,
		eventID,
	)
	return err
}

func (s *CHSalesStorage) StoreBatch(ctx context.Context, events []*models.SalesEvent) error {
	if len(events) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips, chunked at 2000 rows.
	const chunkSize = 2000
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, e := range events[start:end] {
			if e == nil || e.ProductID == "" || e.Timestamp == 0 {
				continue
			}
			eventID := fmt.Sprintf("%s-%d", e.ProductID, e.Timestamp)
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.Unix(e.Timestamp, 0),
				e.ProductID,
				e.Units,
				e.Price,
				s.source,
				eventID,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, product_id, units, price, source, event_id) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *CHSalesStorage) Close() error {
	return nil // Pool managed by pkg
}

// KafkaPublisher implements Publisher for Kafka. Keying by product ID keeps
// per-product ordering within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e *models.SalesEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.ProductID), map[string]interface{}{
		"product_id": e.ProductID,
		"t":          e.Timestamp,
		"units":      e.Units,
		"price":      e.Price,
	})
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, events []*models.SalesEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{
			Key: []byte(e.ProductID),
			Value: map[string]interface{}{
				"product_id": e.ProductID,
				"t":          e.Timestamp,
				"units":      e.Units,
				"price":      e.Price,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
