package service

import (
	"time"

	"PricePulse/internal/domain/models"
)

// SignalEngine computes normalized signal blocks from raw observation series.
// Implementations are pure: no I/O, safe for concurrent use.
type SignalEngine interface {
	Pricing(referencePrice float64, prices []models.CompetitorPrice) models.PricingSignals
	Demand(sales []models.SalesRecord, now time.Time) models.DemandSignals
	Trend(points []models.TrendPoint) models.TrendSignals
	ElasticityHint(sales []models.SalesRecord, prices []models.CompetitorPrice) models.ElasticitySignals
}

// Forecaster projects daily demand over a bounded horizon.
type Forecaster interface {
	Forecast(productID string, sales []models.SalesRecord, trendScore float64, horizonDays int, now time.Time) models.DemandForecast
}

// ElasticityEstimator fits price elasticity of demand from paired series.
type ElasticityEstimator interface {
	Estimate(productID string, referencePrice float64, sales []models.SalesRecord, prices []models.PricePoint) models.ElasticityEstimate
}

// PriceOptimizer searches the fitted demand curve for the revenue-maximizing price.
type PriceOptimizer interface {
	Optimize(productID string, currentPrice, competitorAvg, avgDemand float64, est models.ElasticityEstimate) models.OptimizationResult
}

// RecommendationEngine turns a signal set into ranked actions plus an audit log.
// Rules exposes the static rule table for API consumers.
type RecommendationEngine interface {
	Evaluate(signals *models.ProductSignals) ([]models.Recommendation, []models.DecisionLogEntry)
	Rules() []models.RuleInfo
}

// SalesGenerator produces synthetic sales history for demos and backfills.
type SalesGenerator interface {
	Generate(product models.Product, days int, end time.Time) []*models.SalesEvent
}
