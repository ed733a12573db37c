package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	icache "PricePulse/internal/service/cache"
	"PricePulse/internal/service/metrics"
	"PricePulse/internal/usecase"
	pkgcache "PricePulse/pkg/cache"
	xhttp "PricePulse/pkg/http"
	applogger "PricePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AnalyticsEchoHandler serves signal sets, the KPI rollup, and sales history.
type AnalyticsEchoHandler struct {
	logger  *applogger.Logger
	signals *usecase.SignalsUseCase
	kpis    *usecase.KPIUseCase
	history *usecase.HistoryUseCase

	cache      icache.BytesCache
	signalsTTL time.Duration
	kpisTTL    time.Duration
}

func NewAnalyticsEchoHandler(
	logger *applogger.Logger,
	signals *usecase.SignalsUseCase,
	kpis *usecase.KPIUseCase,
	history *usecase.HistoryUseCase,
) *AnalyticsEchoHandler {
	metrics.Register()
	return &AnalyticsEchoHandler{
		logger:     logger,
		signals:    signals,
		kpis:       kpis,
		history:    history,
		signalsTTL: 30 * time.Second,
		kpisTTL:    time.Minute,
	}
}

// SetCache wires response-byte caching for the hot GETs.
func (h *AnalyticsEchoHandler) SetCache(c icache.BytesCache, signalsTTL, kpisTTL time.Duration) {
	h.cache = c
	if signalsTTL > 0 {
		h.signalsTTL = signalsTTL
	}
	if kpisTTL > 0 {
		h.kpisTTL = kpisTTL
	}
}

func (h *AnalyticsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/analytics")
	g.GET("/signals", h.AllSignals)
	g.GET("/signals/:product_id", h.Signals)
	g.GET("/kpis", h.KPIs)

	e.GET("/api/products/:product_id/history", h.History)
}

type signalListResponse struct {
	Status  string
	Count   int
	Message string
	Signals []*models.ProductSignals
}

func (h *AnalyticsEchoHandler) AllSignals(c echo.Context) error {
	const endpoint = "signals_all"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if b, ok := h.cached(c, endpoint, "signals:all"); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	sets, err := h.signals.AllSignals(c.Request().Context())
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("all signals error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	res := &signalListResponse{Status: "ok", Count: len(sets), Signals: sets}
	if len(sets) == 0 {
		res.Status = "no_products"
		res.Message = "No products found. Seed the catalog or run the simulator."
		res.Signals = []*models.ProductSignals{}
	}
	return h.respond(c, "signals:all", h.signalsTTL, res)
}

func (h *AnalyticsEchoHandler) Signals(c echo.Context) error {
	const endpoint = "signals"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := pkgcache.GenerateKeyWithParams(endpoint, req.ProductID, req.YourPrice)
	if b, ok := h.cached(c, endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.signals.ProductSignals(c.Request().Context(), req.ProductID, req.YourPrice)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, fmt.Sprintf("Product %s not found", req.ProductID))
		}
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("signals error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return h.respond(c, key, h.signalsTTL, res)
}

func (h *AnalyticsEchoHandler) KPIs(c echo.Context) error {
	const endpoint = "kpis"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.KPIsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if !req.Refresh {
		if b, ok := h.cached(c, endpoint, "kpis"); ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	res, err := h.kpis.KPIs(c.Request().Context(), req.Refresh)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("kpis error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return h.respond(c, "kpis", h.kpisTTL, res)
}

func (h *AnalyticsEchoHandler) History(c echo.Context) error {
	const endpoint = "history"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.history.SalesHistory(c.Request().Context(), usecase.SalesHistoryParams{
		ProductID: req.ProductID,
		Window:    domrepo.Window(req.Window),
		Limit:     req.Limit,
	})
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("history error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// cached returns the stored response bytes for key, counting the hit.
func (h *AnalyticsEchoHandler) cached(c echo.Context, endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(c.Request().Context(), key)
	if err != nil {
		h.logger.Warn("cache get error", applogger.String("key", key), applogger.Error(err))
		return nil, false
	}
	if ok {
		metrics.CacheHits.WithLabelValues(endpoint).Inc()
	}
	return b, ok
}

// respond writes the standard envelope and stores the marshaled bytes.
func (h *AnalyticsEchoHandler) respond(c echo.Context, key string, ttl time.Duration, data interface{}) error {
	if h.cache == nil {
		return xhttp.SuccessResponse(c, data)
	}
	b, err := json.Marshal(xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
	if err != nil {
		return xhttp.SuccessResponse(c, data)
	}
	if err := h.cache.SetBytes(c.Request().Context(), key, b, ttl); err != nil {
		h.logger.Warn("cache set error", applogger.String("key", key), applogger.Error(err))
	}
	return c.JSONBlob(http.StatusOK, b)
}

var _ xhttp.Handler = (*AnalyticsEchoHandler)(nil)
