package api

import (
	"net/http"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	icache "PricePulse/internal/service/cache"
	"PricePulse/internal/usecase"
)

func TestSignalsRouteUsesCatalogPrice(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/analytics/signals/p1", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got models.ProductSignals
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.ProductName != "Widget" {
		t.Fatalf("identity = %q/%q", got.ProductID, got.ProductName)
	}
	if got.YourPrice != 99.0 {
		t.Fatalf("YourPrice = %v, want catalog base price 99", got.YourPrice)
	}
	if got.Pricing == nil || got.Demand == nil || got.Trend == nil || got.Elasticity == nil {
		t.Fatalf("missing signal block: %+v", got)
	}
}

func TestSignalsRoutePriceOverride(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/analytics/signals/ghost?your_price=49.99", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got models.ProductSignals
	decodeData(t, env, &got)
	if got.YourPrice != 49.99 {
		t.Fatalf("YourPrice = %v, want override 49.99", got.YourPrice)
	}
}

func TestSignalsRouteUnknownProduct(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/analytics/signals/ghost", "")
	if env.Status != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusNotFound)
	}
}

func TestSignalsRouteRejectsNegativePrice(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/analytics/signals/p1?your_price=-5", "")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusBadRequest)
	}
}

func TestAllSignalsRouteListsCatalog(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/analytics/signals", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status  string
		Count   int
		Signals []*models.ProductSignals
	}
	decodeData(t, env, &got)
	if got.Status != "ok" || got.Count != 1 || len(got.Signals) != 1 {
		t.Fatalf("list = %q count %d len %d", got.Status, got.Count, len(got.Signals))
	}
}

func TestAllSignalsRouteEmptyCatalog(t *testing.T) {
	f := newFixture(t, &marketStub{})

	env := f.do(t, http.MethodGet, "/api/analytics/signals", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status  string
		Message string
		Signals []*models.ProductSignals
	}
	decodeData(t, env, &got)
	if got.Status != "no_products" {
		t.Fatalf("Status = %q, want no_products", got.Status)
	}
	if got.Message == "" {
		t.Fatalf("expected a hint message for the empty catalog")
	}
	if len(got.Signals) != 0 {
		t.Fatalf("Signals = %d entries, want none", len(got.Signals))
	}
}

func TestAllSignalsResponseBytesCached(t *testing.T) {
	f := newFixture(t, marketWithData())
	f.analytics.SetCache(icache.NewTTLCache(), time.Minute, time.Minute)

	f.do(t, http.MethodGet, "/api/analytics/signals", "")
	env := f.do(t, http.MethodGet, "/api/analytics/signals", "")
	if env.Status != http.StatusOK {
		t.Fatalf("replayed envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	products, _ := f.market.readCounts()
	if products != 1 {
		t.Fatalf("catalog reads = %d, want 1 (second call replayed from cache)", products)
	}
}

func TestKPIsRouteAggregates(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/analytics/kpis", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got models.KPISet
	decodeData(t, env, &got)
	if got.Status != "ok" {
		t.Fatalf("Status = %q, want ok", got.Status)
	}
	if got.TotalProducts != 1 {
		t.Fatalf("TotalProducts = %d, want 1", got.TotalProducts)
	}
	if got.EstDailyRevenue <= 0 || got.AvgPricePosition <= 0 {
		t.Fatalf("revenue %v position %v, want positive", got.EstDailyRevenue, got.AvgPricePosition)
	}
}

func TestKPIsRouteEmptyCatalog(t *testing.T) {
	f := newFixture(t, &marketStub{})

	env := f.do(t, http.MethodGet, "/api/analytics/kpis", "")
	var got models.KPISet
	decodeData(t, env, &got)
	if got.Status != "no_data" {
		t.Fatalf("Status = %q, want no_data", got.Status)
	}
	if got.TotalProducts != 0 {
		t.Fatalf("TotalProducts = %d, want 0", got.TotalProducts)
	}
}

func TestHistoryRouteDefaults(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/products/p1/history", "")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got usecase.SalesHistoryResult
	decodeData(t, env, &got)
	if got.ProductID != "p1" || got.Window != "90d" {
		t.Fatalf("result = %q window %q, want p1/90d", got.ProductID, got.Window)
	}
	if got.Count != 60 || len(got.Sales) != 60 {
		t.Fatalf("count = %d len %d, want 60", got.Count, len(got.Sales))
	}
}

func TestHistoryRouteRejectsBadWindow(t *testing.T) {
	f := newFixture(t, marketWithData())

	env := f.do(t, http.MethodGet, "/api/products/p1/history?window=7d", "")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusBadRequest)
	}
}
