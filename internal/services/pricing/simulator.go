package pricing

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"PricePulse/internal/domain/models"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
	"PricePulse/pkg/util"
)

// SimParams shapes the synthetic sales series.
type SimParams struct {
	Seed       int64
	BaseDemand float64 // average daily units at the base price
	GrowthRate float64 // daily trend, 0.0005 is roughly 20% annual
	Elasticity float64 // negative = elastic
}

// DefaultSimParams returns the stock demo parameters.
func DefaultSimParams() SimParams {
	return SimParams{
		Seed:       42,
		BaseDemand: 50,
		GrowthRate: 0.0005,
		Elasticity: -1.2,
	}
}

// SalesGenerator produces synthetic daily sales with seasonality, weekday
// effects, trend growth, price elasticity, and noise. The same seed yields
// the same sequence of events across a generator's lifetime.
type SalesGenerator struct {
	params SimParams

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

func NewSalesGenerator(params SimParams) *SalesGenerator {
	return &SalesGenerator{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
}

// Generate builds one event per day, oldest first, ending at the given date.
// Events are timestamped at midnight UTC of the simulated day.
func (g *SalesGenerator) Generate(product models.Product, days int, end time.Time) []*models.SalesEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	endDay := util.TruncateToDay(end)
	start := endDay.AddDate(0, 0, -(days - 1))

	events := make([]*models.SalesEvent, 0, days)
	for offset := 0; offset < days; offset++ {
		day := start.AddDate(0, 0, offset)

		demand := g.params.BaseDemand * (1.0 + g.params.GrowthRate*float64(offset))
		demand *= seasonMultiplier(day)
		if util.IsWeekend(day) {
			demand *= 1.20
		}

		// Daily price wanders ±8% around base; elasticity converts the
		// price move into a demand move.
		dailyPrice := product.BasePrice * (1 + g.uniform(-0.08, 0.08))
		if product.BasePrice > 0 {
			demand *= math.Pow(dailyPrice/product.BasePrice, g.params.Elasticity)
		}

		noise := 1.0 + g.rng.NormFloat64()*0.15
		demand *= math.Max(noise, 0.1)

		// Flash sales and viral moments.
		if g.rng.Float64() < 0.02 {
			demand *= g.uniform(1.5, 3.0)
		}

		units := int64(math.Round(demand))
		if units < 1 {
			units = 1
		}

		events = append(events, &models.SalesEvent{
			ProductID: product.ID,
			Timestamp: day.Unix(),
			Units:     units,
			Price:     stats.Round(dailyPrice, 2),
		})
	}
	return events
}

func (g *SalesGenerator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// seasonMultiplier maps a date to its demand season. Winter carries the
// holiday peak; monsoon months dip.
func seasonMultiplier(day time.Time) float64 {
	switch day.Month() {
	case time.March, time.April:
		return 1.0 // spring
	case time.May, time.June:
		return 1.15 // summer
	case time.July, time.August, time.September:
		return 0.85 // monsoon
	case time.October, time.November:
		return 1.05 // autumn
	default:
		return 1.30 // winter
	}
}

var _ domsvc.SalesGenerator = (*SalesGenerator)(nil)
