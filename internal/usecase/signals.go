package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	domsvc "PricePulse/internal/domain/service"
	pkgcache "PricePulse/pkg/cache"
	applogger "PricePulse/pkg/logger"
)

// Per-block fetch sizes. Each signal block reads only what its window needs.
const (
	pricingPriceLimit   = 200
	demandWindowDays    = 30
	demandRowLimit      = 60
	trendScoreLimit     = 20
	hintSalesWindowDays = 180
	hintSalesLimit      = 200
	hintPriceLimit      = 50
)

const signalsCachePrefix = "signals"

// SignalsUseCase assembles the four signal blocks for a product. Blocks are
// fetched and computed concurrently; a failed fetch degrades its block to the
// engine's empty default instead of failing the whole set.
type SignalsUseCase struct {
	market      domrepo.MarketStore
	engine      domsvc.SignalEngine
	cache       pkgcache.Service
	snapshotTTL time.Duration
	maxProducts int
	timeout     time.Duration
	l           *applogger.Logger
}

func NewSignalsUseCase(
	market domrepo.MarketStore,
	engine domsvc.SignalEngine,
	cache pkgcache.Service,
	maxProducts int,
	snapshotTTL time.Duration,
	l *applogger.Logger,
) *SignalsUseCase {
	if maxProducts <= 0 {
		maxProducts = 100
	}
	if snapshotTTL <= 0 {
		snapshotTTL = 5 * time.Minute
	}
	return &SignalsUseCase{
		market:      market,
		engine:      engine,
		cache:       cache,
		snapshotTTL: snapshotTTL,
		maxProducts: maxProducts,
		timeout:     10 * time.Second,
		l:           l,
	}
}

// ProductSignals computes the signal set for one product. When yourPrice is
// not positive the catalog base price is used; a product missing from the
// catalog is an error unless an explicit price override was given.
func (uc *SignalsUseCase) ProductSignals(ctx context.Context, productID string, yourPrice float64) (*models.ProductSignals, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id required")
	}

	name := ""
	if p, err := uc.market.Product(ctx, productID); err == nil {
		name = p.Name
		if yourPrice <= 0 {
			yourPrice = p.BasePrice
		}
	} else if yourPrice <= 0 {
		return nil, err
	}

	return uc.compute(ctx, productID, name, yourPrice), nil
}

// AllSignals computes signal sets for the catalog, capped at maxProducts.
// Clean per-product snapshots are cached so the KPI rollup does not recompute
// the whole catalog on every call. Snapshots are fetched in one batch read.
func (uc *SignalsUseCase) AllSignals(ctx context.Context) ([]*models.ProductSignals, error) {
	products, err := uc.market.Products(ctx, uc.maxProducts)
	if err != nil {
		return nil, err
	}

	snapshots := map[string]models.ProductSignals{}
	if uc.cache != nil && len(products) > 0 {
		keys := make([]string, len(products))
		for i := range products {
			keys[i] = pkgcache.GenerateKey(signalsCachePrefix, products[i].ID)
		}
		if hit, err := pkgcache.MGetTyped[models.ProductSignals](ctx, uc.cache, keys...); err == nil {
			snapshots = hit
		} else if uc.l != nil {
			uc.l.Debug("signal snapshot batch read failed", applogger.Error(err))
		}
	}

	out := make([]*models.ProductSignals, 0, len(products))
	for i := range products {
		p := &products[i]

		key := pkgcache.GenerateKey(signalsCachePrefix, p.ID)
		if snap, ok := snapshots[key]; ok && snap.ProductID == p.ID {
			out = append(out, &snap)
			continue
		}

		s := uc.compute(ctx, p.ID, p.Name, p.BasePrice)
		if uc.cache != nil && len(s.Errors) == 0 {
			if err := uc.cache.Set(ctx, key, s, uc.snapshotTTL); err != nil && uc.l != nil {
				uc.l.Debug("signal snapshot cache set failed",
					applogger.String("product_id", p.ID),
					applogger.Error(err))
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// InvalidateSnapshot drops the cached signal set for one product.
func (uc *SignalsUseCase) InvalidateSnapshot(ctx context.Context, productID string) {
	if uc.cache == nil {
		return
	}
	_ = uc.cache.Delete(ctx, pkgcache.GenerateKey(signalsCachePrefix, productID))
}

func (uc *SignalsUseCase) compute(ctx context.Context, productID, name string, yourPrice float64) *models.ProductSignals {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &models.ProductSignals{
		ProductID:   productID,
		ProductName: name,
		YourPrice:   yourPrice,
		ComputedAt:  time.Now().UTC(),
		Errors:      map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.pricingBlock(ctx, productID, yourPrice)
		ch <- item{"pricing", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.demandBlock(ctx, productID)
		ch <- item{"demand", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.trendBlock(ctx, productID)
		ch <- item{"trends", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.hintBlock(ctx, productID)
		ch <- item{"elasticity", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
		}
		switch it.name {
		case "pricing":
			v := it.val.(models.PricingSignals)
			res.Pricing = &v
		case "demand":
			v := it.val.(models.DemandSignals)
			res.Demand = &v
		case "trends":
			v := it.val.(models.TrendSignals)
			res.Trend = &v
		case "elasticity":
			v := it.val.(models.ElasticitySignals)
			res.Elasticity = &v
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	} else if uc.l != nil {
		uc.l.Warn("signal blocks degraded",
			applogger.String("product_id", productID),
			applogger.Int("degraded", len(res.Errors)))
	}
	return res
}

// Fetch-then-compute, one method per block. A fetch error still returns the
// engine's default for the block so the caller always gets a full set.

func (uc *SignalsUseCase) pricingBlock(ctx context.Context, productID string, yourPrice float64) (models.PricingSignals, error) {
	prices, err := uc.market.CompetitorPrices(ctx, productID, pricingPriceLimit)
	if err != nil {
		return uc.engine.Pricing(yourPrice, nil), err
	}
	return uc.engine.Pricing(yourPrice, prices), nil
}

func (uc *SignalsUseCase) demandBlock(ctx context.Context, productID string) (models.DemandSignals, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -demandWindowDays)
	sales, err := uc.market.DailySales(ctx, productID, since, demandRowLimit)
	if err != nil {
		return uc.engine.Demand(nil, now), err
	}
	return uc.engine.Demand(sales, now), nil
}

func (uc *SignalsUseCase) trendBlock(ctx context.Context, productID string) (models.TrendSignals, error) {
	points, err := uc.market.TrendScores(ctx, productID, trendScoreLimit)
	if err != nil {
		return uc.engine.Trend(nil), err
	}
	return uc.engine.Trend(points), nil
}

func (uc *SignalsUseCase) hintBlock(ctx context.Context, productID string) (models.ElasticitySignals, error) {
	since := time.Now().UTC().AddDate(0, 0, -hintSalesWindowDays)
	sales, err := uc.market.DailySales(ctx, productID, since, hintSalesLimit)
	if err != nil {
		return uc.engine.ElasticityHint(nil, nil), err
	}
	prices, err := uc.market.CompetitorPrices(ctx, productID, hintPriceLimit)
	if err != nil {
		return uc.engine.ElasticityHint(sales, nil), err
	}
	return uc.engine.ElasticityHint(sales, prices), nil
}
