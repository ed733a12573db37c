package models

import "time"

// ForecastPoint is one predicted day of demand.
type ForecastPoint struct {
	Date       time.Time
	Demand     float64
	LowerBound float64
	UpperBound float64
}

// ForecastMetrics exposes the fitted smoothing state behind a forecast.
type ForecastMetrics struct {
	Algorithm       string
	TrainingPoints  int
	Level           float64
	TrendPerDay     float64
	TrendMultiplier float64
	ResidualStd     float64
	Seasonal        []float64 // one factor per weekday slot
}

// DemandForecast is the full forecast result for one product.
type DemandForecast struct {
	ProductID   string
	HorizonDays int
	Predictions []ForecastPoint
	Confidence  float64
	Spikes      []time.Time // dates where a demand spike is expected
	Status      string      // "ok" | "insufficient_data"
	Metrics     *ForecastMetrics
	ComputedAt  time.Time
}

// StoredForecast is one persisted forecast row.
type StoredForecast struct {
	ProductID    string
	ForecastDate time.Time
	Demand       float64
	LowerBound   float64
	UpperBound   float64
	Confidence   float64
	CreatedAt    time.Time
}

// ForecastStats summarizes stored forecasts per product.
type ForecastStats struct {
	ProductID     string
	ProductName   string
	ForecastCount int
	AvgDemand     float64
	AvgConfidence float64
}

// PairSource tags how price/demand pairs were built for the regression.
type PairSource string

const (
	PairSourceDateMatched PairSource = "date_matched"
	PairSourceSortedZip   PairSource = "sorted_zip" // positional join, lower fidelity
	PairSourceDefault     PairSource = "default"    // too few pairs, canned estimate
)

// CurvePoint is one sample of the modeled demand curve.
type CurvePoint struct {
	Price   float64
	Demand  float64
	Revenue float64
}

// PriceRange bounds a recommended price band.
type PriceRange struct {
	Min float64
	Max float64
}

// ElasticityEstimate is the log-log regression result for one product.
type ElasticityEstimate struct {
	ProductID       string
	Coefficient     float64 // price elasticity of demand, usually negative
	Sensitivity     string  // "low", "medium", "high"
	R2              float64
	OptimalRange    PriceRange
	Curve           []CurvePoint
	CrossElasticity float64
	Pairs           int
	Source          PairSource
	Algorithm       string
	Quality         Quality
}

// PriceScenario is one what-if price move.
type PriceScenario struct {
	ID           int
	Name         string
	Price        float64
	Demand       float64
	Revenue      float64
	RevenueDelta string // "+$12K" style
	DemandDelta  string
	MarginDelta  string
	Risk         string // "low", "medium", "high"
}

// RevenueImpact is the projected effect of moving to the optimal price.
type RevenueImpact struct {
	Monthly    float64
	MonthlyPct float64
	Display    string // "+$12K" style
	DisplayPct string // "+8.4%" style
}

// OptimizationResult is the revenue-maximizing sweep over the demand curve.
type OptimizationResult struct {
	ProductID         string
	ProductName       string
	CurrentPrice      float64
	CompetitorAvg     float64
	AvgDemand         float64
	OptimalPrice      float64
	OptimalDemand     float64
	OptimalRevenue    float64
	Scenarios         []PriceScenario
	Impact            RevenueImpact
	DemandChange      string // projected demand shift at the optimal price
	MarginImprovement string
	Confidence        float64
	Elasticity        *ElasticityEstimate
	Quality           Quality
}

// PriceRecommendation is one persisted optimizer output row.
type PriceRecommendation struct {
	ID               string
	ProductID        string
	ProductName      string
	RecommendedPrice float64
	ExpectedRevenue  float64 // projected monthly revenue at the recommended price
	Confidence       float64 // 0..1
	CreatedAt        time.Time
}

// VolatilityBreakdown counts products per competitor price volatility class.
type VolatilityBreakdown struct {
	Low    int
	Medium int
	High   int
}

// KPISet aggregates signal sets across the catalog.
type KPISet struct {
	TotalProducts     int
	EstDailyRevenue   float64
	EstMonthlyRevenue float64
	AvgDemandGrowth   float64
	AvgPricePosition  float64
	AvgTrendMomentum  float64
	Volatility        VolatilityBreakdown
	ComputedAt        time.Time
	Status            string // "ok" | "no_data"
}
