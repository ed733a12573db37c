package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	"PricePulse/internal/services/pricing"
	"PricePulse/internal/usecase"
	pkgcache "PricePulse/pkg/cache"
	applogger "PricePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// marketStub serves canned series and counts reads so tests can tell a
// cache replay from a recompute. The signal fan-out reads concurrently.
type marketStub struct {
	mu sync.Mutex

	products []models.Product
	prices   []models.CompetitorPrice
	sales    []models.SalesRecord
	trends   []models.TrendPoint
	history  []models.PricePoint
	refPrice float64

	productsCalls int
	historyCalls  int
}

func (m *marketStub) CompetitorPrices(_ context.Context, _ string, _ int) ([]models.CompetitorPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prices, nil
}

func (m *marketStub) DailySales(_ context.Context, _ string, _ time.Time, _ int) ([]models.SalesRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sales, nil
}

func (m *marketStub) TrendScores(_ context.Context, _ string, _ int) ([]models.TrendPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trends, nil
}

func (m *marketStub) PriceHistory(_ context.Context, _ string, _ int) ([]models.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
	return m.history, nil
}

func (m *marketStub) ReferencePrice(_ context.Context, _ string) (float64, error) {
	if m.refPrice > 0 {
		return m.refPrice, nil
	}
	return 0, domrepo.ErrNotFound
}

func (m *marketStub) Product(_ context.Context, productID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == productID {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, domrepo.ErrNotFound
}

func (m *marketStub) Products(_ context.Context, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productsCalls++
	if limit < len(m.products) {
		return m.products[:limit], nil
	}
	return m.products, nil
}

func (m *marketStub) readCounts() (products, history int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.productsCalls, m.historyCalls
}

// resultsStub records writes and serves canned rows.
type resultsStub struct {
	mu sync.Mutex

	stored []models.StoredForecast
	stats  map[string]models.ForecastStats
	recs   []models.PriceRecommendation

	savedForecasts []*models.DemandForecast
	savedRecs      []*models.PriceRecommendation
}

func (r *resultsStub) SaveForecast(_ context.Context, f *models.DemandForecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedForecasts = append(r.savedForecasts, f)
	return nil
}

func (r *resultsStub) LatestForecast(_ context.Context, _ string, _ int) ([]models.StoredForecast, error) {
	return r.stored, nil
}

func (r *resultsStub) ForecastStats(_ context.Context, productID string, _ int) (models.ForecastStats, error) {
	return r.stats[productID], nil
}

func (r *resultsStub) SavePriceRecommendation(_ context.Context, rec *models.PriceRecommendation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedRecs = append(r.savedRecs, rec)
	return nil
}

func (r *resultsStub) ListPriceRecommendations(_ context.Context, _ int) ([]models.PriceRecommendation, error) {
	return r.recs, nil
}

func (r *resultsStub) saveCounts() (forecasts, recs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.savedForecasts), len(r.savedRecs)
}

// storageStub counts batch writes from the simulator.
type storageStub struct {
	mu      sync.Mutex
	batches [][]*models.SalesEvent
}

func (s *storageStub) Init(context.Context) error { return nil }

func (s *storageStub) Store(context.Context, *models.SalesEvent) error { return nil }

func (s *storageStub) StoreBatch(_ context.Context, events []*models.SalesEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, events)
	return nil
}

func (s *storageStub) Query(context.Context, string, time.Time, time.Time, int) ([]*models.SalesEvent, error) {
	return nil, nil
}
func (s *storageStub) Health(context.Context) error { return nil }
func (s *storageStub) Close() error                 { return nil }

func (s *storageStub) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// queueStub records published jobs.
type queueStub struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	msgType string
	payload interface{}
}

func (q *queueStub) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{msgType: msgType, payload: payload})
	return nil
}

var (
	_ domrepo.MarketStore  = (*marketStub)(nil)
	_ domrepo.ResultsStore = (*resultsStub)(nil)
	_ domrepo.Storage      = (*storageStub)(nil)
)

// Canned series builders.

func catalogOne() []models.Product {
	return []models.Product{{ID: "p1", Name: "Widget", Category: "tools", BasePrice: 99.0}}
}

func daysOfSales(n int, base float64) []models.SalesRecord {
	out := make([]models.SalesRecord, n)
	day := time.Now().UTC().AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		out[i] = models.SalesRecord{Day: day.AddDate(0, 0, i), Units: base + float64(i%7)}
	}
	return out
}

func competitorPricesAround(n int, center float64) []models.CompetitorPrice {
	out := make([]models.CompetitorPrice, n)
	ts := time.Now().UTC().Add(-time.Duration(n) * time.Hour)
	for i := 0; i < n; i++ {
		out[i] = models.CompetitorPrice{Price: center + float64(i%5) - 2, RecordedAt: ts.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func trendScoresRising(n int) []models.TrendPoint {
	out := make([]models.TrendPoint, n)
	ts := time.Now().UTC().AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		out[i] = models.TrendPoint{Score: 40 + float64(i), RecordedAt: ts.AddDate(0, 0, i)}
	}
	return out
}

// marketWithData is a one-product catalog with enough history for every
// pipeline stage to produce a real result.
func marketWithData() *marketStub {
	return &marketStub{
		products: catalogOne(),
		prices:   competitorPricesAround(12, 99),
		sales:    daysOfSales(60, 40),
		trends:   trendScoresRising(10),
		refPrice: 99,
	}
}

// fixture wires real use cases over the stubs and registers both feature
// handlers on a fresh echo instance.
type fixture struct {
	e       *echo.Echo
	market  *marketStub
	results *resultsStub
	storage *storageStub

	// lockCache backs the simulator run lock.
	lockCache pkgcache.Service

	analytics *AnalyticsEchoHandler
	pricingH  *PricingEchoHandler
}

func newFixture(t *testing.T, market *marketStub) *fixture {
	t.Helper()

	l := testLogger(t)
	results := &resultsStub{}
	storage := &storageStub{}
	lockCache := pkgcache.NewMemoryCache()

	signalsUC := usecase.NewSignalsUseCase(market,
		pricing.NewSignalEngine(pricing.DefaultSignalParams()), nil, 100, time.Minute, l)
	kpiUC := usecase.NewKPIUseCase(signalsUC, pkgcache.NewMemoryCache(), time.Minute)
	historyUC := usecase.NewHistoryUseCase(market)
	forecastUC := usecase.NewForecastUseCase(market, results,
		pricing.NewForecaster(pricing.DefaultForecastParams()), pricing.DefaultForecastParams(), l)
	pricingUC := usecase.NewPricingUseCase(market, results,
		pricing.NewElasticityEstimator(pricing.DefaultElasticityParams()),
		pricing.NewPriceOptimizer(pricing.DefaultOptimizerParams()), l)
	recommendUC := usecase.NewRecommendUseCase(market, results, signalsUC,
		pricing.NewRecommendationEngine(pricing.DefaultRuleThresholds()), nil, l)
	simulateUC := usecase.NewSimulateUseCase(market, storage,
		pricing.NewSalesGenerator(pricing.DefaultSimParams()), pricing.DefaultSimParams(),
		lockCache, signalsUC, l)

	analytics := NewAnalyticsEchoHandler(l, signalsUC, kpiUC, historyUC)
	ph := NewPricingEchoHandler(l, forecastUC, pricingUC, recommendUC, simulateUC)

	e := echo.New()
	analytics.RegisterRoutes(e)
	ph.RegisterRoutes(e)

	return &fixture{
		e:         e,
		market:    market,
		results:   results,
		storage:   storage,
		lockCache: lockCache,
		analytics: analytics,
		pricingH:  ph,
	}
}

// envelope mirrors the response wrapper; the wire status lives inside it.
type envelope struct {
	Status  int
	Message string
	Data    json.RawMessage
}

// do issues a request and decodes the envelope. Every registered route
// answers HTTP 200; logical failures surface in envelope.Status.
func (f *fixture) do(t *testing.T, method, target, body string) *envelope {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("%s %s: http status = %d, body %s", method, target, rec.Code, rec.Body.String())
	}
	env := &envelope{}
	if err := json.Unmarshal(rec.Body.Bytes(), env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, target, err)
	}
	return env
}

func decodeData(t *testing.T, env *envelope, v interface{}) {
	t.Helper()
	if len(env.Data) == 0 {
		t.Fatalf("envelope has no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
