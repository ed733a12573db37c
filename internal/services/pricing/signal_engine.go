package pricing

import (
	"math"
	"time"

	"PricePulse/internal/domain/models"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
	"PricePulse/pkg/util"
)

// SignalParams bounds the observation windows and classification bands the
// blocks work with. Windows count rows, not days, except DemandWindowDays.
type SignalParams struct {
	PriceWindow      int     // most-recent competitor price rows
	DemandWindowDays int     // daily sales lookback
	DemandWindow     int     // row cap inside the lookback
	TrendWindow      int     // most-recent trend scores
	VolatilityLow    float64 // coefficient-of-variation bands
	VolatilityHigh   float64
	GrowthBand       float64 // |growth| below this is "stable"
	MomentumBand     float64 // |momentum| below this is "stable"
	HintLow          float64 // |correlation| bands for the elasticity hint
	HintHigh         float64
}

// DefaultSignalParams returns the stock windows and bands.
func DefaultSignalParams() SignalParams {
	return SignalParams{
		PriceWindow:      200,
		DemandWindowDays: 30,
		DemandWindow:     60,
		TrendWindow:      20,
		VolatilityLow:    0.05,
		VolatilityHigh:   0.15,
		GrowthBand:       0.05,
		MomentumBand:     5,
		HintLow:          0.3,
		HintHigh:         0.6,
	}
}

// SignalEngine computes the four signal blocks from raw observation series.
// All inputs are expected oldest to newest; each block trims to its own
// window, so callers may pass more history than the block uses.
type SignalEngine struct {
	params SignalParams
}

func NewSignalEngine(params SignalParams) *SignalEngine {
	return &SignalEngine{params: params}
}

// Pricing positions the reference price against competitor observations.
// No rows means no market to compare against: position stays at the neutral
// 1.0 and the block is tagged empty.
func (e *SignalEngine) Pricing(referencePrice float64, prices []models.CompetitorPrice) models.PricingSignals {
	prices = tailPrices(prices, e.params.PriceWindow)
	if len(prices) == 0 {
		return models.PricingSignals{
			PricePositionIndex: 1.0,
			PriceVolatility:    "low",
			Quality:            models.QualityEmpty,
		}
	}

	values := make([]float64, len(prices))
	for i, p := range prices {
		values[i] = p.Price
	}
	avg := stats.Mean(values)
	std := stats.PopStd(values)

	position := 1.0
	cv := 0.0
	if avg > 0 {
		position = stats.Round(referencePrice/avg, 4)
		cv = std / avg
	}

	return models.PricingSignals{
		CompetitorPriceAvg:   stats.Round(avg, 2),
		PriceVariance:        stats.Round(std, 2),
		PricePositionIndex:   position,
		PriceVolatility:      stats.Classify(cv, e.params.VolatilityLow, e.params.VolatilityHigh),
		PriceVolatilityScore: stats.Round(cv, 4),
		Quality:              models.QualityOk,
	}
}

// Demand computes the 7-day moving average, week-over-week growth, and the
// weekend/weekday seasonal index over the recent daily sales window.
func (e *SignalEngine) Demand(sales []models.SalesRecord, now time.Time) models.DemandSignals {
	cutoff := util.DaysAgo(now, e.params.DemandWindowDays)
	recent := make([]models.SalesRecord, 0, len(sales))
	for _, r := range sales {
		if !r.Day.Before(cutoff) {
			recent = append(recent, r)
		}
	}
	if len(recent) > e.params.DemandWindow {
		recent = recent[len(recent)-e.params.DemandWindow:]
	}
	if len(recent) == 0 {
		return models.DemandSignals{
			DemandGrowthLabel: "stable",
			SeasonalIndex:     1.0,
			Quality:           models.QualityEmpty,
		}
	}

	units := make([]float64, len(recent))
	for i, r := range recent {
		units[i] = r.Units
	}

	last7 := units
	if len(units) >= 7 {
		last7 = units[len(units)-7:]
	}
	var prev7 []float64
	switch {
	case len(units) >= 14:
		prev7 = units[len(units)-14 : len(units)-7]
	case len(units)/2 > 0:
		prev7 = units[:len(units)/2]
	default:
		prev7 = []float64{0}
	}

	ma := stats.Mean(last7)
	prevMA := stats.Mean(prev7)
	growth := 0.0
	if prevMA > 0 {
		growth = (ma - prevMA) / prevMA
	}
	label := "stable"
	if growth > e.params.GrowthBand {
		label = "rising"
	} else if growth < -e.params.GrowthBand {
		label = "falling"
	}

	var weekend, weekday []float64
	for _, r := range recent {
		if util.IsWeekend(r.Day) {
			weekend = append(weekend, r.Units)
		} else {
			weekday = append(weekday, r.Units)
		}
	}
	wdAvg := 1.0
	if len(weekday) > 0 {
		wdAvg = stats.Mean(weekday)
	}
	weAvg := wdAvg
	if len(weekend) > 0 {
		weAvg = stats.Mean(weekend)
	}
	seasonal := 1.0
	if wdAvg > 0 {
		seasonal = stats.Round(weAvg/wdAvg, 4)
	}

	return models.DemandSignals{
		MovingAvgDemand:   stats.Round(ma, 2),
		DemandGrowthRate:  stats.Round(growth, 4),
		DemandGrowthLabel: label,
		SeasonalIndex:     seasonal,
		Quality:           models.QualityOk,
	}
}

// Trend measures momentum as the second-half mean minus the first-half mean
// of the score window, and acceleration as the same split over consecutive
// deltas. Fewer than two points carry no direction and are tagged empty.
func (e *SignalEngine) Trend(points []models.TrendPoint) models.TrendSignals {
	if len(points) > e.params.TrendWindow {
		points = points[len(points)-e.params.TrendWindow:]
	}
	if len(points) < 2 {
		return models.TrendSignals{
			TrendDirection: "stable",
			Quality:        models.QualityEmpty,
		}
	}

	scores := make([]float64, len(points))
	for i, p := range points {
		scores[i] = p.Score
	}

	mid := len(scores) / 2
	momentum := stats.Mean(scores[mid:]) - stats.Mean(scores[:mid])

	acceleration := 0.0
	if len(scores) >= 3 {
		deltas := make([]float64, len(scores)-1)
		for i := 0; i < len(scores)-1; i++ {
			deltas[i] = scores[i+1] - scores[i]
		}
		midD := len(deltas) / 2
		early := 0.0
		if midD > 0 {
			early = stats.Mean(deltas[:midD])
		}
		acceleration = stats.Mean(deltas[midD:]) - early
	}

	direction := "stable"
	if momentum > e.params.MomentumBand {
		direction = "rising"
	} else if momentum < -e.params.MomentumBand {
		direction = "falling"
	}

	return models.TrendSignals{
		TrendMomentum:     stats.Round(momentum, 2),
		TrendDirection:    direction,
		TrendAcceleration: stats.Round(acceleration, 2),
		Quality:           models.QualityOk,
	}
}

// ElasticityHint correlates competitor price moves with demand as a cheap
// sensitivity read. It is not the regression estimate; see the estimator.
func (e *SignalEngine) ElasticityHint(sales []models.SalesRecord, prices []models.CompetitorPrice) models.ElasticitySignals {
	if len(sales) < 4 || len(prices) < 2 {
		return models.ElasticitySignals{Label: "unknown", Quality: models.QualityEmpty}
	}

	priceVals := make([]float64, len(prices))
	for i, p := range prices {
		priceVals[i] = p.Price
	}
	demandVals := make([]float64, len(sales))
	for i, s := range sales {
		demandVals[i] = s.Units
	}

	if stats.PopStd(priceVals) == 0 || stats.PopStd(demandVals) == 0 {
		return models.ElasticitySignals{Label: "low", Quality: models.QualityDegraded}
	}

	corr := stats.ZScoreCorrelation(priceVals, demandVals)
	return models.ElasticitySignals{
		Estimate: stats.Round(corr, 4),
		Label:    stats.Classify(math.Abs(corr), e.params.HintLow, e.params.HintHigh),
		Quality:  models.QualityOk,
	}
}

func tailPrices(prices []models.CompetitorPrice, n int) []models.CompetitorPrice {
	if len(prices) > n {
		return prices[len(prices)-n:]
	}
	return prices
}

var _ domsvc.SignalEngine = (*SignalEngine)(nil)
