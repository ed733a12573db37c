package usecase

import (
	"context"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	"PricePulse/internal/services/pricing"
)

func newForecastFixture(market *marketStub, results *resultsStub) *ForecastUseCase {
	params := pricing.DefaultForecastParams()
	return NewForecastUseCase(market, results, pricing.NewForecaster(params), params, nil)
}

func TestPredictSavesSuccessfulForecast(t *testing.T) {
	market := &marketStub{sales: daysOfSales(60, 40), trends: trendScoresRising(5)}
	results := &resultsStub{}
	uc := newForecastFixture(market, results)

	f, err := uc.Predict(context.Background(), "p1", 14, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != pricing.StatusOK {
		t.Fatalf("expected ok forecast, got %q", f.Status)
	}
	if len(f.Predictions) != 14 {
		t.Fatalf("expected 14 predictions, got %d", len(f.Predictions))
	}
	if len(results.savedForecasts) != 1 {
		t.Fatalf("expected one saved forecast, got %d", len(results.savedForecasts))
	}
}

func TestPredictNoHistoryNotSaved(t *testing.T) {
	market := &marketStub{}
	results := &resultsStub{}
	uc := newForecastFixture(market, results)

	f, err := uc.Predict(context.Background(), "p1", 14, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != pricing.StatusInsufficientData {
		t.Fatalf("expected insufficient data, got %q", f.Status)
	}
	if len(results.savedForecasts) != 0 {
		t.Fatalf("empty forecast must not be persisted")
	}
}

func TestPredictFetchErrorDegradesToEmpty(t *testing.T) {
	market := &marketStub{failSales: true}
	uc := newForecastFixture(market, &resultsStub{})

	f, err := uc.Predict(context.Background(), "p1", 7, false)
	if err != nil {
		t.Fatalf("fetch failure should degrade, not fail: %v", err)
	}
	if f.Status != pricing.StatusInsufficientData {
		t.Fatalf("expected insufficient data, got %q", f.Status)
	}
}

func TestLatestPrefersStoredRows(t *testing.T) {
	stored := []models.StoredForecast{
		{ProductID: "p1", ForecastDate: time.Now(), Demand: 42},
		{ProductID: "p1", ForecastDate: time.Now().AddDate(0, 0, 1), Demand: 44},
	}
	results := &resultsStub{stored: stored}
	uc := newForecastFixture(&marketStub{}, results)

	res, err := uc.Latest(context.Background(), "p1", 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "ok" || res.Count != 2 {
		t.Fatalf("expected stored rows, got %+v", res)
	}
	if res.Generated != nil {
		t.Fatalf("stored path must not generate")
	}
}

func TestLatestGeneratesWhenEmpty(t *testing.T) {
	market := &marketStub{sales: daysOfSales(60, 40)}
	results := &resultsStub{}
	uc := newForecastFixture(market, results)

	res, err := uc.Latest(context.Background(), "p1", 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "generated" {
		t.Fatalf("expected generated, got %q", res.Status)
	}
	if res.Generated == nil || res.Count != len(res.Generated.Predictions) {
		t.Fatalf("unexpected generated result %+v", res)
	}
	if len(results.savedForecasts) != 1 {
		t.Fatalf("generated forecast should be persisted")
	}
}

func TestLatestNoDataWhenNothingToForecast(t *testing.T) {
	uc := newForecastFixture(&marketStub{}, &resultsStub{})

	res, err := uc.Latest(context.Background(), "p1", 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "no_data" {
		t.Fatalf("expected no_data, got %q", res.Status)
	}
}

func TestModelMetricsAggregates(t *testing.T) {
	market := &marketStub{products: []models.Product{
		{ID: "p1", Name: "Widget", BasePrice: 99},
		{ID: "p2", Name: "Gadget", BasePrice: 45},
		{ID: "p3", Name: "Gizmo", BasePrice: 12},
	}}
	results := &resultsStub{stats: map[string]models.ForecastStats{
		"p1": {ProductID: "p1", ForecastCount: 10, AvgDemand: 41.23, AvgConfidence: 0.81234},
		"p2": {ProductID: "p2", ForecastCount: 4, AvgDemand: 12.06, AvgConfidence: 0.6},
		// p3 has no stored forecasts and is skipped.
	}}
	uc := newForecastFixture(market, results)

	res, err := uc.ModelMetrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "ok" {
		t.Fatalf("expected ok, got %q", res.Status)
	}
	if res.Algorithm != pricing.HoltWintersAlgorithm {
		t.Fatalf("unexpected algorithm %q", res.Algorithm)
	}
	if res.ProductsAnalyzed != 2 || res.TotalForecasts != 14 {
		t.Fatalf("unexpected rollup %+v", res)
	}
	if res.ProductMetrics[0].ProductName != "Widget" {
		t.Fatalf("expected product name stamped, got %+v", res.ProductMetrics[0])
	}
	if res.ProductMetrics[0].AvgDemand != 41.2 {
		t.Fatalf("expected rounded demand, got %v", res.ProductMetrics[0].AvgDemand)
	}
}

func TestModelMetricsNoProducts(t *testing.T) {
	uc := newForecastFixture(&marketStub{}, &resultsStub{})

	res, err := uc.ModelMetrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "no_products" {
		t.Fatalf("expected no_products, got %q", res.Status)
	}
}
