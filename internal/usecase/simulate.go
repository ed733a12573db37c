package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "PricePulse/internal/domain/repository"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/pricing"
	pkgcache "PricePulse/pkg/cache"
	applogger "PricePulse/pkg/logger"
)

// ErrSimulationRunning is returned when a seed for the same product is
// already in flight.
var ErrSimulationRunning = errors.New("simulation already running for product")

const simulateLockTTL = 2 * time.Minute

// SimulateUseCase seeds synthetic sales history for a product. Runs are
// serialized per product so overlapping seeds cannot interleave batches.
type SimulateUseCase struct {
	market    domrepo.MarketStore
	storage   domrepo.Storage
	generator domsvc.SalesGenerator
	params    pricing.SimParams
	cache     pkgcache.Service
	signals   *SignalsUseCase
	l         *applogger.Logger
}

func NewSimulateUseCase(
	market domrepo.MarketStore,
	storage domrepo.Storage,
	generator domsvc.SalesGenerator,
	params pricing.SimParams,
	cache pkgcache.Service,
	signals *SignalsUseCase,
	l *applogger.Logger,
) *SimulateUseCase {
	return &SimulateUseCase{
		market:    market,
		storage:   storage,
		generator: generator,
		params:    params,
		cache:     cache,
		signals:   signals,
		l:         l,
	}
}

type SeedParams struct {
	ProductID  string
	Days       int
	BasePrice  float64 // overrides the catalog base price when positive
	BaseDemand float64 // overrides the configured base demand when positive
}

type SimulationSummary struct {
	ProductID         string
	Days              int
	TotalRecords      int
	Stored            int
	ProductsProcessed int
}

func (uc *SimulateUseCase) Seed(ctx context.Context, p SeedParams) (*SimulationSummary, error) {
	if p.ProductID == "" {
		return nil, fmt.Errorf("product id required")
	}
	if p.Days <= 0 {
		p.Days = 365
	}

	if uc.cache != nil {
		lockKey := pkgcache.GenerateKey("simulate", p.ProductID)
		ok, err := uc.cache.TryLock(ctx, lockKey, simulateLockTTL)
		if err == nil && !ok {
			return nil, ErrSimulationRunning
		}
		if err == nil {
			defer func() { _ = uc.cache.Unlock(context.Background(), lockKey) }()
		}
	}

	product, err := uc.market.Product(ctx, p.ProductID)
	if err != nil {
		return nil, err
	}
	if p.BasePrice > 0 {
		product.BasePrice = p.BasePrice
	}

	gen := uc.generator
	if p.BaseDemand > 0 {
		params := uc.params
		params.BaseDemand = p.BaseDemand
		gen = pricing.NewSalesGenerator(params)
	}

	start := time.Now()
	events := gen.Generate(*product, p.Days, time.Now().UTC())
	if err := uc.storage.StoreBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("store simulated sales: %w", err)
	}

	if uc.l != nil {
		uc.l.Info("sales history seeded",
			applogger.String("product_id", p.ProductID),
			applogger.Int("days", p.Days),
			applogger.Int("records", len(events)),
			applogger.Duration("took", time.Since(start)))
	}

	// Seeded history invalidates the cached rollups.
	if uc.signals != nil {
		uc.signals.InvalidateSnapshot(ctx, p.ProductID)
	}
	if uc.cache != nil {
		_ = uc.cache.Delete(ctx, kpiCacheKey)
	}

	return &SimulationSummary{
		ProductID:         p.ProductID,
		Days:              p.Days,
		TotalRecords:      len(events),
		Stored:            len(events),
		ProductsProcessed: 1,
	}, nil
}
