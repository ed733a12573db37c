package usecase

import (
	"context"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	"PricePulse/internal/services/pricing"
	pkgcache "PricePulse/pkg/cache"
)

func newSignalsFixture(market *marketStub, cache pkgcache.Service) *SignalsUseCase {
	engine := pricing.NewSignalEngine(pricing.DefaultSignalParams())
	return NewSignalsUseCase(market, engine, cache, 100, time.Minute, nil)
}

func TestProductSignalsAllBlocksPresent(t *testing.T) {
	market := &marketStub{
		products: catalogOne(),
		prices:   competitorPricesAround(20, 100),
		sales:    daysOfSales(30, 40),
		trends:   trendScoresRising(20),
	}
	uc := newSignalsFixture(market, nil)

	s, err := uc.ProductSignals(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ProductID != "p1" || s.ProductName != "Widget" {
		t.Fatalf("unexpected identity %+v", s)
	}
	if s.YourPrice != 99.0 {
		t.Fatalf("expected catalog base price, got %v", s.YourPrice)
	}
	if s.Pricing == nil || s.Demand == nil || s.Trend == nil || s.Elasticity == nil {
		t.Fatalf("expected all four blocks, got %+v", s)
	}
	if s.Errors != nil {
		t.Fatalf("expected no degradation, got %v", s.Errors)
	}
}

func TestProductSignalsUnknownProductNeedsPrice(t *testing.T) {
	uc := newSignalsFixture(&marketStub{}, nil)

	if _, err := uc.ProductSignals(context.Background(), "ghost", 0); err == nil {
		t.Fatalf("expected error without price override")
	}

	s, err := uc.ProductSignals(context.Background(), "ghost", 49.99)
	if err != nil {
		t.Fatalf("override should evaluate: %v", err)
	}
	if s.YourPrice != 49.99 {
		t.Fatalf("expected override price, got %v", s.YourPrice)
	}
}

func TestProductSignalsEmptyIDRejected(t *testing.T) {
	uc := newSignalsFixture(&marketStub{}, nil)
	if _, err := uc.ProductSignals(context.Background(), "", 10); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestComputeDegradedBlockStillSet(t *testing.T) {
	market := &marketStub{
		products: catalogOne(),
		prices:   competitorPricesAround(20, 100),
		sales:    daysOfSales(30, 40),
		trends:   trendScoresRising(20),
	}
	market.failTrends = true
	uc := newSignalsFixture(market, nil)

	s, err := uc.ProductSignals(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("degraded fetch must not fail the set: %v", err)
	}
	if s.Trend == nil {
		t.Fatalf("expected default trend block despite fetch failure")
	}
	if s.Trend.TrendDirection != "stable" {
		t.Fatalf("expected empty-input default, got %+v", s.Trend)
	}
	if s.Errors == nil || s.Errors["trends"] == "" {
		t.Fatalf("expected trends error recorded, got %v", s.Errors)
	}
	if _, ok := s.Errors["pricing"]; ok {
		t.Fatalf("pricing should not be degraded: %v", s.Errors)
	}
}

func TestAllSignalsCachesCleanSnapshots(t *testing.T) {
	market := &marketStub{
		products: catalogOne(),
		prices:   competitorPricesAround(20, 100),
		sales:    daysOfSales(30, 40),
		trends:   trendScoresRising(20),
	}
	cache := pkgcache.NewMemoryCache()
	uc := newSignalsFixture(market, cache)
	ctx := context.Background()

	first, err := uc.AllSignals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one set, got %d", len(first))
	}

	callsAfterFirst := market.salesCalls
	second, err := uc.AllSignals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 || second[0].ProductID != "p1" {
		t.Fatalf("unexpected cached set %+v", second)
	}
	if market.salesCalls != callsAfterFirst {
		t.Fatalf("expected cache hit, store was queried again")
	}

	uc.InvalidateSnapshot(ctx, "p1")
	if _, err := uc.AllSignals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.salesCalls == callsAfterFirst {
		t.Fatalf("expected recompute after invalidation")
	}
}

func TestAllSignalsPropagatesCatalogError(t *testing.T) {
	market := &marketStub{productsErr: errBoom}
	uc := newSignalsFixture(market, nil)
	if _, err := uc.AllSignals(context.Background()); err == nil {
		t.Fatalf("expected catalog error")
	}
}

func TestAllSignalsDegradedSetNotCached(t *testing.T) {
	market := &marketStub{
		products: catalogOne(),
		sales:    daysOfSales(30, 40),
		trends:   trendScoresRising(20),
	}
	market.failPrices = true
	cache := pkgcache.NewMemoryCache()
	uc := newSignalsFixture(market, cache)
	ctx := context.Background()

	if _, err := uc.AllSignals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := market.salesCalls
	if _, err := uc.AllSignals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.salesCalls == calls {
		t.Fatalf("degraded snapshot must not be served from cache")
	}
}

func catalogOne() []models.Product {
	return []models.Product{{ID: "p1", Name: "Widget", Category: "tools", BasePrice: 99.0}}
}
