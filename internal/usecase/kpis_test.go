package usecase

import (
	"context"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	pkgcache "PricePulse/pkg/cache"
)

func TestKPIsNoData(t *testing.T) {
	signals := newSignalsFixture(&marketStub{}, nil)
	uc := NewKPIUseCase(signals, nil, time.Minute)

	kpi, err := uc.KPIs(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kpi.Status != "no_data" {
		t.Fatalf("expected no_data, got %q", kpi.Status)
	}
	if kpi.AvgPricePosition != 1.0 {
		t.Fatalf("expected neutral position, got %v", kpi.AvgPricePosition)
	}
	if kpi.TotalProducts != 0 {
		t.Fatalf("expected zero products, got %d", kpi.TotalProducts)
	}
}

func TestKPIsAggregatesCatalog(t *testing.T) {
	market := &marketStub{
		products: []models.Product{
			{ID: "p1", Name: "Widget", BasePrice: 100},
			{ID: "p2", Name: "Gadget", BasePrice: 50},
		},
		prices: competitorPricesAround(20, 100),
		sales:  daysOfSales(30, 40),
		trends: trendScoresRising(20),
	}
	signals := newSignalsFixture(market, nil)
	uc := NewKPIUseCase(signals, nil, time.Minute)

	kpi, err := uc.KPIs(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kpi.Status != "ok" {
		t.Fatalf("expected ok, got %q", kpi.Status)
	}
	if kpi.TotalProducts != 2 {
		t.Fatalf("expected 2 products, got %d", kpi.TotalProducts)
	}
	if kpi.EstDailyRevenue <= 0 {
		t.Fatalf("expected positive revenue, got %v", kpi.EstDailyRevenue)
	}
	if kpi.EstMonthlyRevenue != kpi.EstDailyRevenue*30 {
		t.Fatalf("monthly %v is not 30x daily %v", kpi.EstMonthlyRevenue, kpi.EstDailyRevenue)
	}
	if kpi.AvgPricePosition <= 0 {
		t.Fatalf("expected position index, got %v", kpi.AvgPricePosition)
	}
	total := kpi.Volatility.Low + kpi.Volatility.Medium + kpi.Volatility.High
	if total != 2 {
		t.Fatalf("volatility classes must cover the catalog, got %d", total)
	}
}

func TestKPIsCachedBetweenCalls(t *testing.T) {
	market := &marketStub{
		products: catalogOne(),
		prices:   competitorPricesAround(20, 100),
		sales:    daysOfSales(30, 40),
		trends:   trendScoresRising(20),
	}
	cache := pkgcache.NewMemoryCache()
	// Separate signal cache keeps this test about the KPI snapshot.
	signals := newSignalsFixture(market, nil)
	uc := NewKPIUseCase(signals, cache, time.Minute)
	ctx := context.Background()

	if _, err := uc.KPIs(ctx, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := market.salesCalls

	kpi, err := uc.KPIs(ctx, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.salesCalls != calls {
		t.Fatalf("expected cached KPI set, signals were recomputed")
	}
	if kpi.Status != "ok" {
		t.Fatalf("unexpected cached set %+v", kpi)
	}

	// Refresh bypasses the read and recomputes.
	if _, err := uc.KPIs(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.salesCalls == calls {
		t.Fatalf("refresh must recompute")
	}
}

func TestKPIsPropagatesSignalError(t *testing.T) {
	signals := newSignalsFixture(&marketStub{productsErr: errBoom}, nil)
	uc := NewKPIUseCase(signals, nil, time.Minute)

	if _, err := uc.KPIs(context.Background(), false); err == nil {
		t.Fatalf("expected catalog error")
	}
}
