package pricing

import (
	"math"
	"sort"

	"PricePulse/internal/domain/models"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
	"PricePulse/pkg/util"
)

const (
	logLogAlgorithm  = "Log-Log OLS Regression"
	defaultAlgorithm = "Default (insufficient data)"
)

// ElasticityParams bounds pair construction and the canned default estimate.
type ElasticityParams struct {
	MinPairs             int // below this the canned default applies
	MatchedPairThreshold int // below this the sorted-zip fallback kicks in
	DefaultCoefficient   float64
	CurveFloorPct        int
	CurveCeilPct         int
	CurveStepPct         int
}

func DefaultElasticityParams() ElasticityParams {
	return ElasticityParams{
		MinPairs:             5,
		MatchedPairThreshold: 10,
		DefaultCoefficient:   -1.2,
		CurveFloorPct:        60,
		CurveCeilPct:         150,
		CurveStepPct:         5,
	}
}

// ElasticityEstimator fits log(demand) = intercept + coefficient*log(price)
// over joined price/demand series.
type ElasticityEstimator struct {
	params ElasticityParams
}

func NewElasticityEstimator(params ElasticityParams) *ElasticityEstimator {
	return &ElasticityEstimator{params: params}
}

type pricePair struct {
	price  float64
	demand float64
}

// buildPairs joins daily demand against daily average competitor price by
// calendar day. When too few days match, it falls back to a positional zip
// of sorted prices against reverse-sorted demands; the returned source tags
// which mode produced the pairs so callers can tell fallback output apart.
func (e *ElasticityEstimator) buildPairs(sales []models.SalesRecord, prices []models.PricePoint) ([]pricePair, models.PairSource) {
	if len(sales) == 0 || len(prices) == 0 {
		return nil, models.PairSourceDefault
	}

	demandByDay := make(map[string]float64, len(sales))
	for _, s := range sales {
		demandByDay[util.DayKey(s.Day)] = s.Units
	}
	priceByDay := make(map[string]float64, len(prices))
	for _, p := range prices {
		priceByDay[util.DayKey(p.Day)] = p.Price
	}

	pairs := make([]pricePair, 0, len(sales))
	for _, s := range sales {
		price, ok := priceByDay[util.DayKey(s.Day)]
		if ok && s.Units > 0 && price > 0 {
			pairs = append(pairs, pricePair{price: price, demand: s.Units})
		}
	}
	if len(pairs) >= e.params.MatchedPairThreshold {
		return pairs, models.PairSourceDateMatched
	}

	ps := make([]float64, 0, len(priceByDay))
	for _, v := range priceByDay {
		ps = append(ps, v)
	}
	ds := make([]float64, 0, len(demandByDay))
	for _, v := range demandByDay {
		ds = append(ds, v)
	}
	sort.Float64s(ps)
	sort.Sort(sort.Reverse(sort.Float64Slice(ds)))

	n := len(ps)
	if len(ds) < n {
		n = len(ds)
	}
	zipped := make([]pricePair, 0, n)
	for i := 0; i < n; i++ {
		zipped = append(zipped, pricePair{price: ps[i], demand: ds[i]})
	}
	return zipped, models.PairSourceSortedZip
}

// Estimate fits the log-log regression and derives sensitivity, the optimal
// price band, and the price-demand-revenue curve. With fewer than MinPairs
// usable pairs it returns the canned default instead of failing.
func (e *ElasticityEstimator) Estimate(productID string, referencePrice float64, sales []models.SalesRecord, prices []models.PricePoint) models.ElasticityEstimate {
	pairs, source := e.buildPairs(sales, prices)
	if len(pairs) < e.params.MinPairs {
		return e.defaultEstimate(productID, referencePrice)
	}

	logP := make([]float64, len(pairs))
	logD := make([]float64, len(pairs))
	for i, p := range pairs {
		logP[i] = math.Log(p.price)
		logD[i] = math.Log(p.demand)
	}
	reg := stats.OLS(logP, logD)

	coeff := stats.Round(reg.Slope, 4)
	absC := math.Abs(coeff)
	sensitivity := "low"
	switch {
	case absC > 1.5:
		sensitivity = "high"
	case absC > 0.8:
		sensitivity = "medium"
	}

	// Band half-width by sensitivity class.
	margin := 0.20
	switch sensitivity {
	case "high":
		margin = 0.08
	case "medium":
		margin = 0.12
	}

	quality := models.QualityOk
	if source != models.PairSourceDateMatched {
		quality = models.QualityDegraded
	}

	return models.ElasticityEstimate{
		ProductID:   productID,
		Coefficient: coeff,
		Sensitivity: sensitivity,
		R2:          stats.Round(reg.R2, 4),
		OptimalRange: models.PriceRange{
			Min: stats.Round(referencePrice*(1-margin), 2),
			Max: stats.Round(referencePrice*(1+margin), 2),
		},
		Curve:           e.generateCurve(referencePrice, coeff, reg.Intercept),
		CrossElasticity: stats.Round(absC*0.25, 4),
		Pairs:           reg.N,
		Source:          source,
		Algorithm:       logLogAlgorithm,
		Quality:         quality,
	}
}

// generateCurve sweeps price from the floor to the ceiling percentage of the
// base price and models demand at each step.
func (e *ElasticityEstimator) generateCurve(basePrice, coefficient, intercept float64) []models.CurvePoint {
	var curve []models.CurvePoint
	for pct := e.params.CurveFloorPct; pct <= e.params.CurveCeilPct; pct += e.params.CurveStepPct {
		price := stats.Round(basePrice*float64(pct)/100, 2)
		logDemand := 0.0
		if price > 0 {
			logDemand = intercept + coefficient*math.Log(price)
		}
		demand := math.Round(math.Exp(logDemand))
		if demand < 0 {
			demand = 0
		}
		curve = append(curve, models.CurvePoint{
			Price:   price,
			Demand:  demand,
			Revenue: stats.Round(price*demand, 2),
		})
	}
	return curve
}

func (e *ElasticityEstimator) defaultEstimate(productID string, referencePrice float64) models.ElasticityEstimate {
	return models.ElasticityEstimate{
		ProductID:   productID,
		Coefficient: e.params.DefaultCoefficient,
		Sensitivity: "medium",
		OptimalRange: models.PriceRange{
			Min: stats.Round(referencePrice*0.85, 2),
			Max: stats.Round(referencePrice*1.15, 2),
		},
		Curve:           []models.CurvePoint{},
		CrossElasticity: stats.Round(math.Abs(e.params.DefaultCoefficient)*0.25, 4),
		Source:          models.PairSourceDefault,
		Algorithm:       defaultAlgorithm,
		Quality:         models.QualityEmpty,
	}
}

var _ domsvc.ElasticityEstimator = (*ElasticityEstimator)(nil)
