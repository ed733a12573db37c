package api

import (
	"context"
	"net/http"
	"time"

	pkgcache "PricePulse/pkg/cache"
	pkgch "PricePulse/pkg/clickhouse"
	xhttp "PricePulse/pkg/http"

	"github.com/labstack/echo/v4"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// StreamStatus reports order feed connectivity.
type StreamStatus interface {
	IsConnected() bool
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	ch     *pkgch.Client
	cache  pkgcache.Service
	stream StreamStatus
}

func NewHealthHandler(ch *pkgch.Client) *HealthHandler {
	return &HealthHandler{ch: ch}
}

// SetCache adds a cache round-trip to the readiness probe.
func (h *HealthHandler) SetCache(c pkgcache.Service) { h.cache = c }

// SetStream adds order feed connectivity to the readiness probe.
func (h *HealthHandler) SetStream(s StreamStatus) { h.stream = s }

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/health/ready", h.Ready)
}

type healthResponse struct {
	Status  string
	Version string
	Time    time.Time
}

type readyResponse struct {
	Status string
	Checks map[string]string
}

func (h *HealthHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, &healthResponse{
		Status:  "ok",
		Version: Version,
		Time:    time.Now().UTC(),
	})
}

func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if h.ch != nil {
		if err := h.ch.Health(ctx); err != nil {
			checks["clickhouse"] = err.Error()
			ready = false
		} else {
			checks["clickhouse"] = "ok"
		}
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, "health:probe", time.Now().Unix(), time.Second); err != nil {
			checks["cache"] = err.Error()
			ready = false
		} else {
			checks["cache"] = "ok"
		}
	}

	if h.stream != nil {
		if h.stream.IsConnected() {
			checks["orderfeed"] = "ok"
		} else {
			checks["orderfeed"] = "disconnected"
			ready = false
		}
	}

	if !ready {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, &readyResponse{
			Status: "not_ready",
			Checks: checks,
		})
	}
	return xhttp.SuccessResponse(c, &readyResponse{Status: "ready", Checks: checks})
}

var _ xhttp.Handler = (*HealthHandler)(nil)
