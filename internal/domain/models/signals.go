package models

import "time"

// Quality grades how a result was produced. Degraded and empty results are
// still valid outputs; callers that care can branch on the tag instead of
// parsing strings.
type Quality string

const (
	QualityOk       Quality = "ok"
	QualityDegraded Quality = "degraded" // thin or fallback data
	QualityEmpty    Quality = "empty"    // documented default, no data at all
)

// PricingSignals describes where a product sits against competitor prices.
type PricingSignals struct {
	CompetitorPriceAvg   float64
	PriceVariance        float64 // population std of competitor prices
	PricePositionIndex   float64 // your price / competitor avg, 1.0 = at market
	PriceVolatility      string  // "low", "medium", "high"
	PriceVolatilityScore float64 // coefficient of variation
	Quality              Quality
}

// DemandSignals summarizes recent unit sales.
type DemandSignals struct {
	MovingAvgDemand   float64 // mean of the last 7 daily values
	DemandGrowthRate  float64 // last 7 vs prior 7
	DemandGrowthLabel string  // "rising", "falling", "stable"
	SeasonalIndex     float64 // weekend avg / weekday avg
	Quality           Quality
}

// TrendSignals summarizes search-interest movement.
type TrendSignals struct {
	TrendMomentum     float64 // second-half mean minus first-half mean
	TrendDirection    string  // "rising", "falling", "stable"
	TrendAcceleration float64
	Quality           Quality
}

// ElasticitySignals is the cheap correlation-based price sensitivity hint.
// The full regression lives in ElasticityEstimate.
type ElasticitySignals struct {
	Estimate float64
	Label    string // "unknown", "low", "medium", "high"
	Quality  Quality
}

// ProductSignals is a consolidated view of all signals for one product.
// Note: no transport (json/http) concerns here.
// Errors maps block name to the fetch failure that degraded it.
type ProductSignals struct {
	ProductID   string
	ProductName string
	YourPrice   float64
	ComputedAt  time.Time
	Pricing     *PricingSignals
	Demand      *DemandSignals
	Trend       *TrendSignals
	Elasticity  *ElasticitySignals
	Errors      map[string]string
}
