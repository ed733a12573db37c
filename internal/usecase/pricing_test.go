package usecase

import (
	"context"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	"PricePulse/internal/services/pricing"
)

func newPricingFixture(market *marketStub, results *resultsStub) *PricingUseCase {
	return NewPricingUseCase(
		market,
		results,
		pricing.NewElasticityEstimator(pricing.DefaultElasticityParams()),
		pricing.NewPriceOptimizer(pricing.DefaultOptimizerParams()),
		nil,
	)
}

func pairedHistory(n int) ([]models.SalesRecord, []models.PricePoint) {
	sales := make([]models.SalesRecord, n)
	prices := make([]models.PricePoint, n)
	day := time.Now().UTC().AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		d := day.AddDate(0, 0, i)
		price := 90 + float64(i%10)
		sales[i] = models.SalesRecord{Day: d, Units: 200 - price + float64(i%3)}
		prices[i] = models.PricePoint{Day: d, Price: price}
	}
	return sales, prices
}

func TestElasticityResolvesReferencePrice(t *testing.T) {
	sales, prices := pairedHistory(30)
	market := &marketStub{sales: sales, history: prices, refPrice: 95}
	uc := newPricingFixture(market, &resultsStub{})

	est, err := uc.Elasticity(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.ProductID != "p1" {
		t.Fatalf("unexpected product %q", est.ProductID)
	}
	if est.Source != models.PairSourceDateMatched {
		t.Fatalf("expected date-matched pairs, got %q", est.Source)
	}
	if est.Coefficient >= 0 {
		t.Fatalf("expected negative elasticity, got %v", est.Coefficient)
	}
}

func TestElasticityDefaultsWhenDataMissing(t *testing.T) {
	market := &marketStub{failSales: true, failHistory: true}
	uc := newPricingFixture(market, &resultsStub{})

	est, err := uc.Elasticity(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("fetch failures should degrade, not fail: %v", err)
	}
	if est.Source != models.PairSourceDefault {
		t.Fatalf("expected canned default, got %q", est.Source)
	}
	if est.Coefficient != -1.2 {
		t.Fatalf("expected default coefficient, got %v", est.Coefficient)
	}
}

func TestOptimizeSavesRecommendation(t *testing.T) {
	sales, prices := pairedHistory(30)
	market := &marketStub{
		products: []models.Product{{ID: "p1", Name: "Widget", BasePrice: 95}},
		sales:    sales,
		history:  prices,
		prices:   competitorPricesAround(20, 96),
	}
	results := &resultsStub{}
	uc := newPricingFixture(market, results)

	res, err := uc.Optimize(context.Background(), "p1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ProductName != "Widget" {
		t.Fatalf("expected catalog name, got %q", res.ProductName)
	}
	if res.OptimalPrice <= 0 || res.OptimalRevenue <= 0 {
		t.Fatalf("expected a positive optimum, got %+v", res)
	}
	if len(results.savedRecs) != 1 {
		t.Fatalf("expected one saved recommendation, got %d", len(results.savedRecs))
	}
	rec := results.savedRecs[0]
	if rec.ProductID != "p1" || rec.RecommendedPrice <= 0 {
		t.Fatalf("unexpected saved row %+v", rec)
	}
	// Monthly projection is 30 daily optima.
	if rec.ExpectedRevenue < res.OptimalRevenue*29 {
		t.Fatalf("expected monthly projection, got %v vs daily %v", rec.ExpectedRevenue, res.OptimalRevenue)
	}
}

func TestOptimizeUnknownProductFallsBack(t *testing.T) {
	market := &marketStub{}
	results := &resultsStub{}
	uc := newPricingFixture(market, results)

	res, err := uc.Optimize(context.Background(), "ghost", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ProductName != "Unknown" {
		t.Fatalf("expected Unknown fallback, got %q", res.ProductName)
	}
	if res.CurrentPrice != defaultReferencePrice {
		t.Fatalf("expected default reference price, got %v", res.CurrentPrice)
	}
	if len(results.savedRecs) != 0 {
		t.Fatalf("save not requested")
	}
}

func TestRecentAvgDemandFallback(t *testing.T) {
	uc := newPricingFixture(&marketStub{}, &resultsStub{})
	if got := uc.recentAvgDemand(context.Background(), "p1"); got != fallbackAvgDemand {
		t.Fatalf("expected fallback demand, got %v", got)
	}

	uc2 := newPricingFixture(&marketStub{sales: daysOfSales(14, 10)}, &resultsStub{})
	if got := uc2.recentAvgDemand(context.Background(), "p1"); got <= 0 {
		t.Fatalf("expected averaged demand, got %v", got)
	}
}

func TestCompetitorAvgNoData(t *testing.T) {
	uc := newPricingFixture(&marketStub{}, &resultsStub{})
	if got := uc.competitorAvg(context.Background(), "p1"); got != 0 {
		t.Fatalf("expected zero anchor, got %v", got)
	}
}
