package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the ingest Metrics interface on collectors in the
// default Prometheus registry.
type Recorder struct {
	events    *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lastPrice *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

func New() *Recorder {
	return &Recorder{
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pricepulse_events_sent_total", Help: "Sales events handed to a backend"},
			[]string{"backend", "product"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pricepulse_errors_total", Help: "Ingest errors by kind"},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pricepulse_last_sale_price", Help: "Most recent sale price per product"},
			[]string{"product"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pricepulse_operation_duration_seconds", Help: "Ingest operation latency", Buckets: prometheus.DefBuckets},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordEventSent(backend, productID string) {
	r.events.WithLabelValues(backend, productID).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(productID string, price float64) {
	r.lastPrice.WithLabelValues(productID).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
