package pricing

import (
	"math"
	"time"

	"PricePulse/internal/domain/models"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
)

// HoltWintersAlgorithm names the fitted model in forecast metrics.
const HoltWintersAlgorithm = "Holt-Winters Triple Exponential Smoothing"

const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// ForecastParams holds the smoothing coefficients and horizon bounds.
type ForecastParams struct {
	Alpha        float64 // level smoothing
	Beta         float64 // trend smoothing
	Gamma        float64 // seasonal smoothing
	SeasonLength int
	MinHorizon   int
	MaxHorizon   int
}

func DefaultForecastParams() ForecastParams {
	return ForecastParams{
		Alpha:        0.3,
		Beta:         0.1,
		Gamma:        0.2,
		SeasonLength: 7,
		MinHorizon:   7,
		MaxHorizon:   30,
	}
}

// Forecaster projects daily demand with Holt-Winters triple exponential
// smoothing: multiplicative weekly seasonality over an additive trend.
type Forecaster struct {
	params ForecastParams
}

func NewForecaster(params ForecastParams) *Forecaster { return &Forecaster{params: params} }

type decomposition struct {
	level       float64
	trend       float64
	seasonal    []float64
	residualStd float64
}

// decompose runs one smoothing pass over the series. Series shorter than
// two seasons carry no usable seasonality and fall back to a straight line
// through the endpoints.
func (f *Forecaster) decompose(values []float64) decomposition {
	season := f.params.SeasonLength
	n := len(values)

	if n < season*2 {
		d := decomposition{seasonal: make([]float64, season)}
		for i := range d.seasonal {
			d.seasonal[i] = 1.0
		}
		if n > 0 {
			d.level = values[n-1]
		}
		if n >= 2 {
			d.trend = (values[n-1] - values[0]) / float64(n-1)
		}
		return d
	}

	// Seasonal indices from the first full season.
	initialAvg := stats.Mean(values[:season])
	seasonal := make([]float64, season)
	for i := 0; i < season; i++ {
		if initialAvg > 0 {
			seasonal[i] = values[i] / initialAvg
		} else {
			seasonal[i] = 1.0
		}
	}

	level := initialAvg
	trend := (stats.Mean(values[season:2*season]) - initialAvg) / float64(season)

	residuals := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		idx := i % season
		factor := seasonal[idx]

		var newLevel float64
		if factor > 0 {
			newLevel = f.params.Alpha*(values[i]/factor) + (1-f.params.Alpha)*(level+trend)
		} else {
			newLevel = f.params.Alpha*values[i] + (1-f.params.Alpha)*(level+trend)
		}
		newTrend := f.params.Beta*(newLevel-level) + (1-f.params.Beta)*trend
		if newLevel > 0 {
			seasonal[idx] = f.params.Gamma*(values[i]/newLevel) + (1-f.params.Gamma)*seasonal[idx]
		}

		// Residual against the pre-update state.
		residuals = append(residuals, values[i]-(level+trend)*factor)

		level = newLevel
		trend = newTrend
	}

	return decomposition{
		level:       level,
		trend:       trend,
		seasonal:    seasonal,
		residualStd: stats.PopStd(residuals),
	}
}

// Forecast projects demand over horizonDays, anchored at the last observed
// sale date. trendScore amplifies projections on a 0-100 scale, 50 neutral.
// An empty series yields no predictions and status insufficient_data, never
// a zero-demand forecast.
func (f *Forecaster) Forecast(productID string, sales []models.SalesRecord, trendScore float64, horizonDays int, now time.Time) models.DemandForecast {
	horizon := horizonDays
	if horizon < f.params.MinHorizon {
		horizon = f.params.MinHorizon
	}
	if horizon > f.params.MaxHorizon {
		horizon = f.params.MaxHorizon
	}

	out := models.DemandForecast{
		ProductID:   productID,
		HorizonDays: horizon,
		ComputedAt:  now,
	}
	if len(sales) == 0 {
		out.Predictions = []models.ForecastPoint{}
		out.Status = StatusInsufficientData
		return out
	}

	values := make([]float64, len(sales))
	for i, r := range sales {
		values[i] = r.Units
	}
	lastDay := sales[len(sales)-1].Day

	multiplier := 0.95 + trendScore/500 // 0.95-1.15 for scores 0-100

	d := f.decompose(values)

	preds := make([]models.ForecastPoint, 0, horizon)
	for day := 1; day <= horizon; day++ {
		idx := (day - 1) % len(d.seasonal)
		val := (d.level + d.trend*float64(day)) * d.seasonal[idx] * multiplier
		if val < 0 {
			val = 0
		}
		uncertainty := d.residualStd * math.Sqrt(float64(day)) * 1.96
		lower := val - uncertainty
		if lower < 0 {
			lower = 0
		}
		preds = append(preds, models.ForecastPoint{
			Date:       lastDay.AddDate(0, 0, day),
			Demand:     stats.Round(val, 1),
			LowerBound: stats.Round(lower, 1),
			UpperBound: stats.Round(val+uncertainty, 1),
		})
	}

	recent := values
	if len(values) > 14 {
		recent = values[len(values)-14:]
	}
	avgRecent := stats.Mean(recent)
	noise := 0.5
	if avgRecent > 0 {
		noise = d.residualStd / avgRecent
	}
	base := math.Max(0.5, 1.0-noise)
	penalty := 1.0 - float64(horizon)/100

	out.Predictions = preds
	out.Confidence = stats.Round(stats.Clamp(base*penalty, 0.4, 0.98), 4)
	out.Spikes = f.detectSpikes(d.seasonal, lastDay.AddDate(0, 0, 1), horizon)
	out.Status = StatusOK
	out.Metrics = &models.ForecastMetrics{
		Algorithm:       HoltWintersAlgorithm,
		TrainingPoints:  len(values),
		Level:           stats.Round(d.level, 2),
		TrendPerDay:     stats.Round(d.trend, 4),
		TrendMultiplier: stats.Round(multiplier, 4),
		ResidualStd:     stats.Round(d.residualStd, 2),
		Seasonal:        d.seasonal,
	}
	return out
}

// detectSpikes flags projected dates whose seasonal factor stands out from
// the rest of the week and sits meaningfully above baseline.
func (f *Forecaster) detectSpikes(seasonal []float64, start time.Time, horizon int) []time.Time {
	if len(seasonal) == 0 {
		return nil
	}
	maxFactor := seasonal[0]
	for _, s := range seasonal[1:] {
		if s > maxFactor {
			maxFactor = s
		}
	}
	threshold := maxFactor * 0.85

	var spikes []time.Time
	for day := 0; day < horizon; day++ {
		idx := day % len(seasonal)
		if seasonal[idx] >= threshold && seasonal[idx] > 1.1 {
			spikes = append(spikes, start.AddDate(0, 0, day))
		}
	}
	return spikes
}

var _ domsvc.Forecaster = (*Forecaster)(nil)
