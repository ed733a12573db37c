package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
)

var errBoom = errors.New("boom")

// marketStub serves canned series. Per-series fail switches let tests
// degrade one block at a time. Methods are called concurrently by the
// signal fan-out, so recording goes through the mutex.
type marketStub struct {
	mu sync.Mutex

	products []models.Product
	prices   []models.CompetitorPrice
	sales    []models.SalesRecord
	trends   []models.TrendPoint
	history  []models.PricePoint
	refPrice float64

	failPrices  bool
	failSales   bool
	failTrends  bool
	failHistory bool
	productsErr error

	salesCalls int
}

func (m *marketStub) CompetitorPrices(_ context.Context, _ string, _ int) ([]models.CompetitorPrice, error) {
	if m.failPrices {
		return nil, errBoom
	}
	return m.prices, nil
}

func (m *marketStub) DailySales(_ context.Context, _ string, _ time.Time, _ int) ([]models.SalesRecord, error) {
	m.mu.Lock()
	m.salesCalls++
	m.mu.Unlock()
	if m.failSales {
		return nil, errBoom
	}
	return m.sales, nil
}

func (m *marketStub) TrendScores(_ context.Context, _ string, _ int) ([]models.TrendPoint, error) {
	if m.failTrends {
		return nil, errBoom
	}
	return m.trends, nil
}

func (m *marketStub) PriceHistory(_ context.Context, _ string, _ int) ([]models.PricePoint, error) {
	if m.failHistory {
		return nil, errBoom
	}
	return m.history, nil
}

func (m *marketStub) ReferencePrice(_ context.Context, productID string) (float64, error) {
	if m.refPrice > 0 {
		return m.refPrice, nil
	}
	return 0, domrepo.ErrNotFound
}

func (m *marketStub) Product(_ context.Context, productID string) (*models.Product, error) {
	for i := range m.products {
		if m.products[i].ID == productID {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, domrepo.ErrNotFound
}

func (m *marketStub) Products(_ context.Context, limit int) ([]models.Product, error) {
	if m.productsErr != nil {
		return nil, m.productsErr
	}
	if limit < len(m.products) {
		return m.products[:limit], nil
	}
	return m.products, nil
}

// resultsStub records writes and serves canned stored rows.
type resultsStub struct {
	mu sync.Mutex

	stored    []models.StoredForecast
	stats     map[string]models.ForecastStats
	recs      []models.PriceRecommendation
	statsErr  error
	listErr   error
	storedErr error

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
	if r.storedErr != nil {
		return nil, r.storedErr
	}
	return r.stored, nil
}

func (r *resultsStub) ForecastStats(_ context.Context, productID string, _ int) (models.ForecastStats, error) {
	if r.statsErr != nil {
		return models.ForecastStats{}, r.statsErr
	}
	return r.stats[productID], nil
}

func (r *resultsStub) SavePriceRecommendation(_ context.Context, rec *models.PriceRecommendation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedRecs = append(r.savedRecs, rec)
	return nil
}

func (r *resultsStub) ListPriceRecommendations(_ context.Context, _ int) ([]models.PriceRecommendation, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.recs, nil
}

// storageStub records writes for the simulator and the ingest handlers.
type storageStub struct {
	mu       sync.Mutex
	stored   []*models.SalesEvent
	batches  [][]*models.SalesEvent
	storeErr error
}

func (s *storageStub) Init(context.Context) error { return nil }

func (s *storageStub) Store(_ context.Context, e *models.SalesEvent) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, e)
	return nil
}

func (s *storageStub) StoreBatch(_ context.Context, events []*models.SalesEvent) error {
	if s.storeErr != nil {
		return s.storeErr
	}
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

func (s *storageStub) storedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

// publisherStub records published events.
type publisherStub struct {
	mu      sync.Mutex
	events  []*models.SalesEvent
	batches [][]*models.SalesEvent
	err     error
}

func (p *publisherStub) Publish(_ context.Context, e *models.SalesEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *publisherStub) PublishBatch(_ context.Context, events []*models.SalesEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, events)
	return nil
}

func (p *publisherStub) Close() error { return nil }

// metricsStub counts recorder calls by kind.
type metricsStub struct {
	mu     sync.Mutex
	sent   int
	errors map[string]int
	prices map[string]float64
}

func newMetricsStub() *metricsStub {
	return &metricsStub{errors: map[string]int{}, prices: map[string]float64{}}
}

func (m *metricsStub) RecordEventSent(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *metricsStub) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *metricsStub) RecordLastPrice(productID string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[productID] = price
}

func (m *metricsStub) RecordLatency(string, float64) {}

func (m *metricsStub) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func (m *metricsStub) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

var (
	_ domrepo.MarketStore  = (*marketStub)(nil)
	_ domrepo.ResultsStore = (*resultsStub)(nil)
	_ domrepo.Storage      = (*storageStub)(nil)
	_ domrepo.Publisher    = (*publisherStub)(nil)
	_ domrepo.Metrics      = (*metricsStub)(nil)
)

// Canned series builders.

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
