package middleware

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricepulse_http_requests_total",
			Help: "HTTP requests by route, method, and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricepulse_http_request_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)

	httpResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricepulse_http_response_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
		},
		[]string{"route", "method"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricepulse_http_in_flight_requests",
			Help: "Requests currently being served.",
		},
	)

	httpMetricsOnce sync.Once
)

// Metrics records per-route request metrics. The route label is the echo
// template ("/api/v1/products/:id/forecast"), never the raw URL, so label
// cardinality stays bounded by the route table. Requests slower than
// slowThreshold get a log line.
func Metrics(slowThreshold time.Duration) echo.MiddlewareFunc {
	httpMetricsOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestSeconds, httpResponseBytes, httpInFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			// The error handler runs after the chain unwinds, so on error
			// the response status is not written yet. Take it from the
			// error instead.
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			httpRequestSeconds.WithLabelValues(route, method).Observe(elapsed.Seconds())
			httpResponseBytes.WithLabelValues(route, method).Observe(float64(c.Response().Size))

			if slowThreshold > 0 && elapsed >= slowThreshold {
				log.Printf("http slow request: %s %s took %s", method, route, elapsed)
			}

			return err
		}
	}
}
