package usecase

import (
	"context"
	"time"

	"PricePulse/internal/domain/models"
	"PricePulse/internal/services/stats"
	pkgcache "PricePulse/pkg/cache"
)

const kpiCacheKey = "kpis:snapshot"

// KPIUseCase rolls the per-product signal sets up into catalog-level KPIs.
// The rollup is cached; refresh bypasses the read but still rewrites.
type KPIUseCase struct {
	signals *SignalsUseCase
	cache   pkgcache.Service
	ttl     time.Duration
}

func NewKPIUseCase(signals *SignalsUseCase, cache pkgcache.Service, ttl time.Duration) *KPIUseCase {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &KPIUseCase{signals: signals, cache: cache, ttl: ttl}
}

func (uc *KPIUseCase) KPIs(ctx context.Context, refresh bool) (*models.KPISet, error) {
	if uc.cache != nil && !refresh {
		var cached models.KPISet
		if err := uc.cache.Get(ctx, kpiCacheKey, &cached); err == nil && cached.Status != "" {
			return &cached, nil
		}
	}

	sets, err := uc.signals.AllSignals(ctx)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return &models.KPISet{
			AvgPricePosition: 1.0,
			ComputedAt:       time.Now().UTC(),
			Status:           "no_data",
		}, nil
	}

	var estDaily, growth, position, momentum float64
	var vol models.VolatilityBreakdown
	for _, s := range sets {
		// Revenue floor of one unit per day keeps dormant products visible.
		ma := 1.0
		if s.Demand != nil {
			ma = max(s.Demand.MovingAvgDemand, 1)
			growth += s.Demand.DemandGrowthRate
		}
		estDaily += s.YourPrice * ma

		if s.Pricing != nil {
			position += s.Pricing.PricePositionIndex
			switch s.Pricing.PriceVolatility {
			case "high":
				vol.High++
			case "medium":
				vol.Medium++
			default:
				vol.Low++
			}
		} else {
			position += 1.0
			vol.Low++
		}

		if s.Trend != nil {
			momentum += s.Trend.TrendMomentum
		}
	}

	n := float64(len(sets))
	kpi := &models.KPISet{
		TotalProducts:     len(sets),
		EstDailyRevenue:   stats.Round(estDaily, 2),
		EstMonthlyRevenue: stats.Round(estDaily*30, 2),
		AvgDemandGrowth:   stats.Round(growth/n, 4),
		AvgPricePosition:  stats.Round(position/n, 4),
		AvgTrendMomentum:  stats.Round(momentum/n, 2),
		Volatility:        vol,
		ComputedAt:        sets[0].ComputedAt,
		Status:            "ok",
	}

	if uc.cache != nil {
		_ = uc.cache.Set(ctx, kpiCacheKey, kpi, uc.ttl)
	}
	return kpi, nil
}
