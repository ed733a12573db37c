package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	pkgkafka "PricePulse/pkg/kafka"
)

// KafkaSalesHandler consumes sales events from Kafka and writes to storage.
type KafkaSalesHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaSalesHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaSalesHandler {
	return &KafkaSalesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSalesHandler) Topic() string { return h.topic }

// incoming message schema: {product_id, t, units, price}
func (h *KafkaSalesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ProductID string  `json:"product_id"`
		T         int64   `json:"t"`
		Units     int64   `json:"units"`
		Price     float64 `json:"price"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &models.SalesEvent{
		ProductID: m.ProductID,
		Timestamp: m.T,
		Units:     m.Units,
		Price:     m.Price,
	})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordEventSent("clickhouse", m.ProductID)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSalesHandler)(nil)
