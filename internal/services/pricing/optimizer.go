package pricing

import (
	"fmt"
	"math"

	"PricePulse/internal/domain/models"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
)

// OptimizerParams tunes the scenario sweep and confidence scoring.
// Multipliers are relative to the current price.
type OptimizerParams struct {
	AggressiveMult  float64 // "Aggressive Growth" cut
	PremiumMult     float64 // "Premium Push" raise
	PenetrationMult float64 // "Market Penetration" cut
	ConfidenceFloor float64
	ConfidenceCeil  float64
	PairsSaturation int // pair count past which data volume stops adding confidence
}

// DefaultOptimizerParams returns the stock scenario multipliers.
func DefaultOptimizerParams() OptimizerParams {
	return OptimizerParams{
		AggressiveMult:  0.90,
		PremiumMult:     1.30,
		PenetrationMult: 0.80,
		ConfidenceFloor: 0.5,
		ConfidenceCeil:  0.98,
		PairsSaturation: 50,
	}
}

// PriceOptimizer sweeps the fitted demand curve for the revenue-maximizing
// price and builds fixed what-if scenarios around the current price.
type PriceOptimizer struct {
	params OptimizerParams
}

func NewPriceOptimizer(params OptimizerParams) *PriceOptimizer {
	return &PriceOptimizer{params: params}
}

// Optimize picks the revenue peak from the estimate's curve and projects the
// move's monthly impact. An empty curve keeps the current price with zero
// projected demand and revenue. Ties on the curve resolve to the lowest
// price, the curve being sampled ascending.
func (o *PriceOptimizer) Optimize(productID string, currentPrice, competitorAvg, avgDemand float64, est models.ElasticityEstimate) models.OptimizationResult {
	optPrice, optDemand, optRevenue := currentPrice, 0.0, 0.0
	if len(est.Curve) > 0 {
		best := est.Curve[0]
		for _, pt := range est.Curve[1:] {
			if pt.Revenue > best.Revenue {
				best = pt
			}
		}
		optPrice, optDemand, optRevenue = best.Price, best.Demand, best.Revenue
	}

	currentDaily := currentPrice * avgDemand
	optimalDaily := optPrice * avgDemand
	if optDemand > 0 {
		optimalDaily = optPrice * optDemand
	}
	monthly := (optimalDaily - currentDaily) * 30
	monthlyPct := 0.0
	if currentDaily > 0 {
		monthlyPct = (optimalDaily - currentDaily) / currentDaily * 100
	}

	marginImprovement := 0.0
	if currentPrice > 0 {
		marginImprovement = (optPrice - currentPrice) / currentPrice * 100
	}
	demandChange := 0.0
	if currentPrice > 0 && avgDemand > 0 {
		projected := avgDemand * math.Pow(optPrice/currentPrice, est.Coefficient)
		demandChange = (projected - avgDemand) / avgDemand * 100
	}

	dataConfidence := math.Min(1.0, float64(est.Pairs)/float64(o.params.PairsSaturation))
	confidence := stats.Round(stats.Clamp(est.R2*0.5+dataConfidence*0.5, o.params.ConfidenceFloor, o.params.ConfidenceCeil), 4)

	reportedAvg := competitorAvg
	if reportedAvg <= 0 {
		reportedAvg = currentPrice * 1.05
	}

	estCopy := est
	return models.OptimizationResult{
		ProductID:      productID,
		CurrentPrice:   currentPrice,
		CompetitorAvg:  reportedAvg,
		AvgDemand:      avgDemand,
		OptimalPrice:   optPrice,
		OptimalDemand:  optDemand,
		OptimalRevenue: optRevenue,
		Scenarios:      o.scenarios(currentPrice, optPrice, avgDemand, est.Coefficient),
		Impact: models.RevenueImpact{
			Monthly:    stats.Round(monthly, 2),
			MonthlyPct: stats.Round(monthlyPct, 2),
			Display:    fmtMoneyDelta(monthly),
			DisplayPct: fmtPctDelta(monthlyPct),
		},
		DemandChange:      fmtPctDelta(demandChange),
		MarginImprovement: fmtPctDelta(marginImprovement),
		Confidence:        confidence,
		Elasticity:        &estCopy,
		Quality:           est.Quality,
	}
}

// scenarios projects the four fixed price moves through the constant-elasticity
// demand model anchored at the current price.
func (o *PriceOptimizer) scenarios(currentPrice, optimalPrice, avgDemand, coefficient float64) []models.PriceScenario {
	demandAt := func(price float64) float64 {
		if currentPrice <= 0 {
			return avgDemand
		}
		return math.Max(0, avgDemand*math.Pow(price/currentPrice, coefficient))
	}
	currentRevenue := currentPrice * demandAt(currentPrice)

	configs := []struct {
		id    int
		name  string
		price float64
		risk  string
	}{
		{1, "Aggressive Growth", stats.Round(currentPrice*o.params.AggressiveMult, 2), "low"},
		{2, "Balanced Optimal", optimalPrice, "low"},
		{3, "Premium Push", stats.Round(currentPrice*o.params.PremiumMult, 2), "medium"},
		{4, "Market Penetration", stats.Round(currentPrice*o.params.PenetrationMult, 2), "high"},
	}

	out := make([]models.PriceScenario, 0, len(configs))
	for _, cfg := range configs {
		demand := demandAt(cfg.price)
		revenue := cfg.price * demand
		demandDelta := 0.0
		if avgDemand > 0 {
			demandDelta = (demand - avgDemand) / avgDemand * 100
		}
		marginDelta := 0.0
		if currentPrice > 0 {
			marginDelta = (cfg.price - currentPrice) / currentPrice * 100
		}
		out = append(out, models.PriceScenario{
			ID:           cfg.id,
			Name:         cfg.name,
			Price:        cfg.price,
			Demand:       stats.Round(demand, 1),
			Revenue:      stats.Round(revenue, 2),
			RevenueDelta: fmtMoneyDelta(revenue - currentRevenue),
			DemandDelta:  fmtPctDelta(demandDelta),
			MarginDelta:  fmtPctDelta(marginDelta),
			Risk:         cfg.risk,
		})
	}
	return out
}

// fmtMoneyDelta renders a signed dollar delta in thousands, e.g. "-$5K".
func fmtMoneyDelta(delta float64) string {
	sign := "+"
	if delta < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s$%.0fK", sign, math.Abs(delta)/1000)
}

func fmtPctDelta(delta float64) string {
	return fmt.Sprintf("%+.1f%%", delta)
}

var _ domsvc.PriceOptimizer = (*PriceOptimizer)(nil)
