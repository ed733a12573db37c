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
	"PricePulse/internal/service/ratelimit"
	"PricePulse/internal/usecase"
	pkgcache "PricePulse/pkg/cache"
	xhttp "PricePulse/pkg/http"
	applogger "PricePulse/pkg/logger"
	pkgqueue "PricePulse/pkg/queue"

	"github.com/labstack/echo/v4"
)

// PricingEchoHandler serves forecasting, elasticity, optimization, and
// recommendation routes. The expensive operations are rate limited per
// client IP; predict and simulate can be deferred to the job queue.
type PricingEchoHandler struct {
	logger    *applogger.Logger
	forecast  *usecase.ForecastUseCase
	pricing   *usecase.PricingUseCase
	recommend *usecase.RecommendUseCase
	simulate  *usecase.SimulateUseCase

	queue pkgqueue.QueueService
	cache icache.BytesCache
	rl    *ratelimit.Limiter

	elasticityTTL time.Duration
	scenarioTTL   time.Duration
}

func NewPricingEchoHandler(
	logger *applogger.Logger,
	forecast *usecase.ForecastUseCase,
	pricing *usecase.PricingUseCase,
	recommend *usecase.RecommendUseCase,
	simulate *usecase.SimulateUseCase,
) *PricingEchoHandler {
	metrics.Register()
	return &PricingEchoHandler{
		logger:        logger,
		forecast:      forecast,
		pricing:       pricing,
		recommend:     recommend,
		simulate:      simulate,
		rl:            ratelimit.New(),
		elasticityTTL: 5 * time.Minute,
		scenarioTTL:   5 * time.Minute,
	}
}

// SetQueue enables async predict/simulate via the job queue.
func (h *PricingEchoHandler) SetQueue(q pkgqueue.QueueService) { h.queue = q }

// SetCache wires response-byte caching for elasticity and scenarios.
func (h *PricingEchoHandler) SetCache(c icache.BytesCache, elasticityTTL, scenarioTTL time.Duration) {
	h.cache = c
	if elasticityTTL > 0 {
		h.elasticityTTL = elasticityTTL
	}
	if scenarioTTL > 0 {
		h.scenarioTTL = scenarioTTL
	}
}

func (h *PricingEchoHandler) RegisterRoutes(e *echo.Echo) {
	f := e.Group("/api/forecasting")
	f.POST("/predict/:product_id", h.Predict)
	f.GET("/latest/:product_id", h.Latest)
	f.GET("/model-metrics", h.ModelMetrics)

	p := e.Group("/api/pricing")
	p.GET("/elasticity/:product_id", h.Elasticity)
	p.GET("/optimize/:product_id", h.Optimize)
	p.GET("/scenarios/:product_id", h.Scenarios)
	p.GET("/recommendations", h.Recommendations)
	p.GET("/recommendations/:product_id", h.Evaluate)

	e.POST("/api/products/:product_id/simulate", h.Simulate)
}

type queuedResponse struct {
	Status    string
	JobType   string
	ProductID string
}

type scenariosResponse struct {
	Status       string
	ProductID    string
	CurrentPrice float64
	OptimalPrice float64
	Scenarios    []models.PriceScenario
}

func (h *PricingEchoHandler) Predict(c echo.Context) error {
	const endpoint = "predict"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint, 5, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	if req.Async && h.queue != nil {
		err := h.queue.PublishMessage(c.Request().Context(), usecase.MsgForecastRefresh, usecase.ForecastRefreshPayload{
			ProductID:   req.ProductID,
			HorizonDays: req.HorizonDays,
		})
		if err != nil {
			metrics.PricingErrors.WithLabelValues(endpoint).Inc()
			h.logger.Error("predict enqueue error", applogger.String("product_id", req.ProductID), applogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, &queuedResponse{
			Status:    "queued",
			JobType:   usecase.MsgForecastRefresh,
			ProductID: req.ProductID,
		})
	}

	save := req.Save == nil || *req.Save
	f, err := h.forecast.Predict(c.Request().Context(), req.ProductID, req.HorizonDays, save)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("predict error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if len(f.Predictions) == 0 {
		return xhttp.NotFoundResponse(c, fmt.Sprintf("No sales data found for product %s", req.ProductID))
	}
	return xhttp.SuccessResponse(c, f)
}

func (h *PricingEchoHandler) Latest(c echo.Context) error {
	const endpoint = "forecast_latest"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.LatestForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecast.Latest(c.Request().Context(), req.ProductID, req.Limit)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("latest forecast error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingEchoHandler) ModelMetrics(c echo.Context) error {
	const endpoint = "model_metrics"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	res, err := h.forecast.ModelMetrics(c.Request().Context())
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("model metrics error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingEchoHandler) Elasticity(c echo.Context) error {
	const endpoint = "elasticity"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ElasticityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := pkgcache.GenerateKeyWithParams(endpoint, req.ProductID, req.YourPrice)
	if b, ok := h.cached(c, endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.pricing.Elasticity(c.Request().Context(), req.ProductID, req.YourPrice)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("elasticity error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return h.respond(c, key, h.elasticityTTL, res)
}

func (h *PricingEchoHandler) Optimize(c echo.Context) error {
	const endpoint = "optimize"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint, 5, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	save := req.Save == nil || *req.Save
	res, err := h.pricing.Optimize(c.Request().Context(), req.ProductID, save)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("optimize error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingEchoHandler) Scenarios(c echo.Context) error {
	const endpoint = "scenarios"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ScenariosRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := "scenarios:" + req.ProductID
	if b, ok := h.cached(c, endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.pricing.Optimize(c.Request().Context(), req.ProductID, false)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scenarios error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return h.respond(c, key, h.scenarioTTL, &scenariosResponse{
		Status:       "ok",
		ProductID:    req.ProductID,
		CurrentPrice: res.CurrentPrice,
		OptimalPrice: res.OptimalPrice,
		Scenarios:    res.Scenarios,
	})
}

func (h *PricingEchoHandler) Recommendations(c echo.Context) error {
	const endpoint = "recommendations"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.recommend.ListAll(c.Request().Context(), req.Limit)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("recommendations error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingEchoHandler) Evaluate(c echo.Context) error {
	const endpoint = "evaluate"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.recommend.Evaluate(c.Request().Context(), req.ProductID)
	if err != nil {
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("evaluate error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingEchoHandler) Simulate(c echo.Context) error {
	const endpoint = "simulate"
	start := time.Now()
	defer func() { metrics.PricingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint, 2, 0.2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	if req.Async && h.queue != nil {
		err := h.queue.PublishMessage(c.Request().Context(), usecase.MsgSalesSimulate, usecase.SalesSimulatePayload{
			ProductID: req.ProductID,
			Days:      req.Days,
		})
		if err != nil {
			metrics.PricingErrors.WithLabelValues(endpoint).Inc()
			h.logger.Error("simulate enqueue error", applogger.String("product_id", req.ProductID), applogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, &queuedResponse{
			Status:    "queued",
			JobType:   usecase.MsgSalesSimulate,
			ProductID: req.ProductID,
		})
	}

	summary, err := h.simulate.Seed(c.Request().Context(), usecase.SeedParams{
		ProductID: req.ProductID,
		Days:      req.Days,
	})
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, fmt.Sprintf("Product %s not found", req.ProductID))
		}
		if errors.Is(err, usecase.ErrSimulationRunning) {
			return xhttp.DataResponse(c, http.StatusConflict, err.Error())
		}
		metrics.PricingErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("simulate error", applogger.String("product_id", req.ProductID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *PricingEchoHandler) allow(c echo.Context, endpoint string, capacity, refillPerSec float64) bool {
	if h.rl == nil {
		return true
	}
	if h.rl.Allow(c.RealIP()+":"+endpoint, capacity, refillPerSec) {
		return true
	}
	h.logger.Warn("rate limited",
		applogger.String("endpoint", endpoint),
		applogger.String("remote", c.RealIP()))
	return false
}

func (h *PricingEchoHandler) cached(c echo.Context, endpoint, key string) ([]byte, bool) {
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

func (h *PricingEchoHandler) respond(c echo.Context, key string, ttl time.Duration, data interface{}) error {
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

var _ xhttp.Handler = (*PricingEchoHandler)(nil)
