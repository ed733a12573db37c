package usecase

import (
	"context"
	"fmt"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
	applogger "PricePulse/pkg/logger"
)

const (
	elasticitySalesWindowDays = 180
	elasticitySalesLimit      = 400
	elasticityPriceDayLimit   = 200

	optimizerPriceLimit       = 50
	optimizerDemandWindowDays = 14

	defaultReferencePrice = 100.0
	fallbackAvgDemand     = 50.0
)

// PricingUseCase runs the elasticity regression and the price optimizer over
// stored market data. Missing inputs fall back to documented defaults so a
// thin catalog still produces an answer.
type PricingUseCase struct {
	market    domrepo.MarketStore
	results   domrepo.ResultsStore
	estimator domsvc.ElasticityEstimator
	optimizer domsvc.PriceOptimizer
	l         *applogger.Logger
}

func NewPricingUseCase(
	market domrepo.MarketStore,
	results domrepo.ResultsStore,
	estimator domsvc.ElasticityEstimator,
	optimizer domsvc.PriceOptimizer,
	l *applogger.Logger,
) *PricingUseCase {
	return &PricingUseCase{
		market:    market,
		results:   results,
		estimator: estimator,
		optimizer: optimizer,
		l:         l,
	}
}

// Elasticity fits the log-log demand curve for a product. A non-positive
// referencePrice is resolved from the catalog, defaulting to 100 when the
// product is unknown.
func (uc *PricingUseCase) Elasticity(ctx context.Context, productID string, referencePrice float64) (*models.ElasticityEstimate, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id required")
	}

	if referencePrice <= 0 {
		ref, err := uc.market.ReferencePrice(ctx, productID)
		if err != nil || ref <= 0 {
			ref = defaultReferencePrice
		}
		referencePrice = ref
	}

	since := time.Now().UTC().AddDate(0, 0, -elasticitySalesWindowDays)
	sales, err := uc.market.DailySales(ctx, productID, since, elasticitySalesLimit)
	if err != nil {
		uc.warn("elasticity sales fetch failed", productID, err)
		sales = nil
	}
	prices, err := uc.market.PriceHistory(ctx, productID, elasticityPriceDayLimit)
	if err != nil {
		uc.warn("elasticity price history fetch failed", productID, err)
		prices = nil
	}

	est := uc.estimator.Estimate(productID, referencePrice, sales, prices)
	return &est, nil
}

// Optimize sweeps the fitted demand curve for the revenue-maximizing price.
// With save set, a positive-revenue result is persisted as a price
// recommendation; a failed write is logged and does not fail the call.
func (uc *PricingUseCase) Optimize(ctx context.Context, productID string, save bool) (*models.OptimizationResult, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id required")
	}

	name := "Unknown"
	currentPrice := defaultReferencePrice
	if p, err := uc.market.Product(ctx, productID); err == nil {
		name = p.Name
		currentPrice = p.BasePrice
	}

	est, err := uc.Elasticity(ctx, productID, currentPrice)
	if err != nil {
		return nil, err
	}

	res := uc.optimizer.Optimize(productID, currentPrice,
		uc.competitorAvg(ctx, productID),
		uc.recentAvgDemand(ctx, productID),
		*est)
	res.ProductName = name

	if save && res.OptimalRevenue > 0 {
		rec := &models.PriceRecommendation{
			ProductID:        productID,
			ProductName:      name,
			RecommendedPrice: stats.Round(res.OptimalPrice, 2),
			ExpectedRevenue:  stats.Round(res.OptimalRevenue*30, 2),
			Confidence:       res.Confidence,
		}
		if err := uc.results.SavePriceRecommendation(ctx, rec); err != nil && uc.l != nil {
			uc.l.Error("price recommendation save failed",
				applogger.String("product_id", productID),
				applogger.Error(err))
		}
	}
	return &res, nil
}

// competitorAvg is the mean of the most recent competitor prices, rounded to
// cents. No data yields 0, which the optimizer treats as no anchor.
func (uc *PricingUseCase) competitorAvg(ctx context.Context, productID string) float64 {
	prices, err := uc.market.CompetitorPrices(ctx, productID, optimizerPriceLimit)
	if err != nil {
		uc.warn("competitor price fetch failed", productID, err)
		return 0
	}
	if len(prices) == 0 {
		return 0
	}
	values := make([]float64, len(prices))
	for i, p := range prices {
		values[i] = p.Price
	}
	return stats.Round(stats.Mean(values), 2)
}

// recentAvgDemand averages daily units over the last two weeks, defaulting
// to 50 when there are no sales rows to average.
func (uc *PricingUseCase) recentAvgDemand(ctx context.Context, productID string) float64 {
	since := time.Now().UTC().AddDate(0, 0, -optimizerDemandWindowDays)
	rows, err := uc.market.DailySales(ctx, productID, since, optimizerDemandWindowDays)
	if err != nil {
		uc.warn("recent demand fetch failed", productID, err)
		return fallbackAvgDemand
	}
	if len(rows) == 0 {
		return fallbackAvgDemand
	}
	var total float64
	for _, r := range rows {
		total += r.Units
	}
	return stats.Round(total/float64(len(rows)), 1)
}

func (uc *PricingUseCase) warn(msg, productID string, err error) {
	if uc.l == nil {
		return
	}
	uc.l.Warn(msg, applogger.String("product_id", productID), applogger.Error(err))
}
