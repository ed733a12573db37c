package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	icache "PricePulse/internal/service/cache"
	"PricePulse/internal/usecase"
	pkgcache "PricePulse/pkg/cache"
)

func TestPredictRouteForecasts(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodPost, "/api/forecasting/predict/p1", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got models.DemandForecast
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.Status != "ok" {
		t.Fatalf("forecast = %q %q, want p1/ok", got.ProductID, got.Status)
	}
	if len(got.Predictions) != 14 {
		t.Fatalf("predictions = %d, want default horizon 14", len(got.Predictions))
	}

	forecasts, _ := f.results.saveCounts()
	if forecasts != 1 {
		t.Fatalf("saved forecasts = %d, want 1", forecasts)
	}
}

func TestPredictRouteNoSalesNotFound(t *testing.T) {
	f := newFixture(t, &marketStub{products: catalogOne()})

	env := f.do(t, http.MethodPost, "/api/forecasting/predict/p1", "")
	if env.Status != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusNotFound)
	}

	forecasts, _ := f.results.saveCounts()
	if forecasts != 0 {
		t.Fatalf("saved forecasts = %d, want none without history", forecasts)
	}
}

func TestPredictRouteRejectsShortHorizon(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodPost, "/api/forecasting/predict/p1", `{"horizon_days": 3}`)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusBadRequest)
	}
}

func TestPredictRouteAsyncQueues(t *testing.T) {
	f := newFixture(t, marketWithData())
	q := &queueStub{}
	f.pricingH.SetQueue(q)

	env := f.do(t, http.MethodPost, "/api/forecasting/predict/p1", `{"async": true, "horizon_days": 21}`)
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status    string
		JobType   string
		ProductID string
	}
	decodeData(t, env, &got)
	if got.Status != "queued" || got.JobType != usecase.MsgForecastRefresh || got.ProductID != "p1" {
		t.Fatalf("queued response = %+v", got)
	}

	if len(q.published) != 1 {
		t.Fatalf("published = %d jobs, want 1", len(q.published))
	}
	payload, ok := q.published[0].payload.(usecase.ForecastRefreshPayload)
	if !ok {
		t.Fatalf("payload type = %T", q.published[0].payload)
	}
	if payload.ProductID != "p1" || payload.HorizonDays != 21 {
		t.Fatalf("payload = %+v", payload)
	}

	forecasts, _ := f.results.saveCounts()
	if forecasts != 0 {
		t.Fatalf("saved forecasts = %d, want none on the async path", forecasts)
	}
}

func TestPredictRouteRateLimited(t *testing.T) {
	f := newFixture(t, &marketStub{products: catalogOne()})

	var last *envelope
	for i := 0; i < 6; i++ {
		last = f.do(t, http.MethodPost, "/api/forecasting/predict/p1", "")
	}
	if last.Status != http.StatusTooManyRequests {
		t.Fatalf("sixth call status = %d, want %d", last.Status, http.StatusTooManyRequests)
	}
}

func TestLatestRouteStoredRows(t *testing.T) {
	f := newFixture(t, marketWithData())
	now := time.Now().UTC()
	f.results.stored = []models.StoredForecast{
		{ProductID: "p1", ForecastDate: now.AddDate(0, 0, 1), Demand: 42, Confidence: 0.8, CreatedAt: now},
		{ProductID: "p1", ForecastDate: now.AddDate(0, 0, 2), Demand: 44, Confidence: 0.8, CreatedAt: now},
	}

	env := f.do(t, http.MethodGet, "/api/forecasting/latest/p1", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got usecase.LatestForecastResult
	decodeData(t, env, &got)
	if got.Status != "ok" || got.Count != 2 {
		t.Fatalf("latest = %q count %d, want ok/2", got.Status, got.Count)
	}
}

func TestModelMetricsRoute(t *testing.T) {
	f := newFixture(t, marketWithData())
	f.results.stats = map[string]models.ForecastStats{
		"p1": {ProductID: "p1", ForecastCount: 10, AvgDemand: 41.23, AvgConfidence: 0.8},
	}

	env := f.do(t, http.MethodGet, "/api/forecasting/model-metrics", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got usecase.ModelMetricsResult
	decodeData(t, env, &got)
	if got.Status != "ok" || got.ProductsAnalyzed != 1 {
		t.Fatalf("metrics = %q analyzed %d, want ok/1", got.Status, got.ProductsAnalyzed)
	}
	if got.Algorithm == "" {
		t.Fatalf("expected the algorithm name in model metrics")
	}
	if got.TotalForecasts != 10 {
		t.Fatalf("TotalForecasts = %d, want 10", got.TotalForecasts)
	}
}

func TestElasticityRouteResponseCached(t *testing.T) {
	f := newFixture(t, marketWithData())
	f.pricingH.SetCache(icache.NewTTLCache(), time.Minute, time.Minute)

	env := f.do(t, http.MethodGet, "/api/pricing/elasticity/p1", "")
	var got models.ElasticityEstimate
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.Coefficient >= 0 {
		t.Fatalf("estimate = %q coefficient %v", got.ProductID, got.Coefficient)
	}

	_, before := f.market.readCounts()
	f.do(t, http.MethodGet, "/api/pricing/elasticity/p1", "")
	_, after := f.market.readCounts()
	if after != before {
		t.Fatalf("price history reads %d -> %d, want replay without recompute", before, after)
	}

	// ..but a different reference price is a different cache key.
	f.do(t, http.MethodGet, "/api/pricing/elasticity/p1?your_price=50", "")
	_, again := f.market.readCounts()
	if again == after {
		t.Fatalf("expected a recompute for a new your_price key")
	}
}

func TestOptimizeRouteSavesRecommendation(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/pricing/optimize/p1", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got models.OptimizationResult
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.ProductName != "Widget" {
		t.Fatalf("identity = %q/%q", got.ProductID, got.ProductName)
	}
	if got.OptimalPrice <= 0 || len(got.Scenarios) == 0 {
		t.Fatalf("optimal %v scenarios %d", got.OptimalPrice, len(got.Scenarios))
	}

	_, recs := f.results.saveCounts()
	if recs != 1 {
		t.Fatalf("saved recommendations = %d, want 1", recs)
	}
}

func TestOptimizeRouteSkipsSave(t *testing.T) {
	f := newFixture(t, marketWithData())

	f.do(t, http.MethodGet, "/api/pricing/optimize/p1?save=false", "")

	_, recs := f.results.saveCounts()
	if recs != 0 {
		t.Fatalf("saved recommendations = %d, want none with save=false", recs)
	}
}

func TestScenariosRouteNeverPersists(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/pricing/scenarios/p1", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status       string
		ProductID    string
		CurrentPrice float64
		OptimalPrice float64
		Scenarios    []models.PriceScenario
	}
	decodeData(t, env, &got)
	if got.Status != "ok" || got.ProductID != "p1" {
		t.Fatalf("scenarios = %q %q", got.Status, got.ProductID)
	}
	if len(got.Scenarios) == 0 {
		t.Fatalf("expected scenario rows")
	}

	_, recs := f.results.saveCounts()
	if recs != 0 {
		t.Fatalf("saved recommendations = %d, want none from scenarios", recs)
	}
}

func TestRecommendationsRouteCombines(t *testing.T) {
	f := newFixture(t, marketWithData())
	f.results.recs = []models.PriceRecommendation{
		{ID: "r1", ProductID: "p1", RecommendedPrice: 104.5, ExpectedRevenue: 130000, Confidence: 0.7},
	}

	env := f.do(t, http.MethodGet, "/api/pricing/recommendations", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got usecase.RecommendationsResult
	decodeData(t, env, &got)
	if len(got.Stored) != 1 {
		t.Fatalf("stored = %d, want 1", len(got.Stored))
	}
	if len(got.Live) == 0 || len(got.Rules) != 6 {
		t.Fatalf("live %d rules %d, want live rows and the full rule table", len(got.Live), len(got.Rules))
	}
}

func TestEvaluateRoute(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/pricing/recommendations/p1", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got models.Evaluation
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.RulesEvaluated != 6 {
		t.Fatalf("evaluation = %q rules %d", got.ProductID, got.RulesEvaluated)
	}
	if got.Signals == nil || len(got.DecisionLog) != 6 {
		t.Fatalf("signals %v log %d", got.Signals, len(got.DecisionLog))
	}
}

func TestSimulateRouteSeeds(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodPost, "/api/products/p1/simulate", `{"days": 30}`)
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got usecase.SimulationSummary
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.Days != 30 {
		t.Fatalf("summary = %q days %d", got.ProductID, got.Days)
	}
	if got.Stored < 30 {
		t.Fatalf("Stored = %d, want at least one event per day", got.Stored)
	}
	if f.storage.batchCount() != 1 {
		t.Fatalf("batches = %d, want 1", f.storage.batchCount())
	}
}

func TestSimulateRouteUnknownProduct(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodPost, "/api/products/ghost/simulate", "")
	if env.Status != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusNotFound)
	}
}

func TestSimulateRouteConflict(t *testing.T) {
	f := newFixture(t, marketWithData())

	key := pkgcache.GenerateKey("simulate", "p1")
	held, err := f.lockCache.TryLock(context.Background(), key, time.Minute)
	if err != nil || !held {
		t.Fatalf("pre-hold lock: held=%v err=%v", held, err)
	}

	env := f.do(t, http.MethodPost, "/api/products/p1/simulate", "")
	if env.Status != http.StatusConflict {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusConflict)
	}
}

func TestSimulateRouteRateLimited(t *testing.T) {
	f := newFixture(t, marketWithData())

	var last *envelope
	for i := 0; i < 3; i++ {
		last = f.do(t, http.MethodPost, "/api/products/p1/simulate", `{"days": 5}`)
	}
	if last.Status != http.StatusTooManyRequests {
		t.Fatalf("third call status = %d, want %d", last.Status, http.StatusTooManyRequests)
	}
	if f.storage.batchCount() != 2 {
		t.Fatalf("batches = %d, want 2 before the limiter kicks in", f.storage.batchCount())
	}
}

func TestSimulateRouteAsyncQueues(t *testing.T) {
	f := newFixture(t, marketWithData())
	q := &queueStub{}
	f.pricingH.SetQueue(q)

	env := f.do(t, http.MethodPost, "/api/products/p1/simulate", `{"async": true, "days": 10}`)
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status  string
		JobType string
	}
	decodeData(t, env, &got)
	if got.Status != "queued" || got.JobType != usecase.MsgSalesSimulate {
		t.Fatalf("queued response = %+v", got)
	}

	if len(q.published) != 1 {
		t.Fatalf("published = %d jobs, want 1", len(q.published))
	}
	payload, ok := q.published[0].payload.(usecase.SalesSimulatePayload)
	if !ok {
		t.Fatalf("payload type = %T", q.published[0].payload)
	}
	if payload.ProductID != "p1" || payload.Days != 10 {
		t.Fatalf("payload = %+v", payload)
	}
	if f.storage.batchCount() != 0 {
		t.Fatalf("batches = %d, want none on the async path", f.storage.batchCount())
	}
}
