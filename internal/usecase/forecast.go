package usecase

import (
	"context"
	"fmt"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/pricing"
	"PricePulse/internal/services/stats"
	applogger "PricePulse/pkg/logger"
)

const (
	forecastSalesWindowDays = 180
	forecastSalesLimit      = 500
	defaultTrendScore       = 50.0

	modelMetricsProductCap = 10
	modelMetricsLastN      = 30
)

// ForecastUseCase runs the demand forecaster against stored sales history
// and persists the predictions for later reads.
type ForecastUseCase struct {
	market     domrepo.MarketStore
	results    domrepo.ResultsStore
	forecaster domsvc.Forecaster
	params     pricing.ForecastParams
	l          *applogger.Logger
}

func NewForecastUseCase(
	market domrepo.MarketStore,
	results domrepo.ResultsStore,
	forecaster domsvc.Forecaster,
	params pricing.ForecastParams,
	l *applogger.Logger,
) *ForecastUseCase {
	return &ForecastUseCase{
		market:     market,
		results:    results,
		forecaster: forecaster,
		params:     params,
		l:          l,
	}
}

// Predict forecasts demand over horizonDays. History that cannot be read is
// treated as empty, which the forecaster reports as insufficient data. With
// save set, a successful forecast is persisted; a failed write is logged and
// does not fail the forecast.
func (uc *ForecastUseCase) Predict(ctx context.Context, productID string, horizonDays int, save bool) (*models.DemandForecast, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id required")
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -forecastSalesWindowDays)
	sales, err := uc.market.DailySales(ctx, productID, since, forecastSalesLimit)
	if err != nil {
		if uc.l != nil {
			uc.l.Warn("forecast sales fetch failed",
				applogger.String("product_id", productID),
				applogger.Error(err))
		}
		sales = nil
	}

	f := uc.forecaster.Forecast(productID, sales, uc.latestTrendScore(ctx, productID), horizonDays, now)

	if save && f.Status == pricing.StatusOK && len(f.Predictions) > 0 {
		if err := uc.results.SaveForecast(ctx, &f); err != nil && uc.l != nil {
			uc.l.Error("forecast save failed",
				applogger.String("product_id", productID),
				applogger.Error(err))
		}
	}
	return &f, nil
}

// LatestForecastResult is the stored-or-generated read path outcome.
type LatestForecastResult struct {
	Status    string // "ok" | "generated" | "no_data"
	Forecasts []models.StoredForecast
	Count     int
	Generated *models.DemandForecast
}

// Latest returns the most recent stored predictions for a product. When none
// exist it generates and persists a fresh forecast over the requested span.
func (uc *ForecastUseCase) Latest(ctx context.Context, productID string, limit int) (*LatestForecastResult, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id required")
	}
	if limit <= 0 {
		limit = 14
	}

	rows, err := uc.results.LatestForecast(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return &LatestForecastResult{Status: "ok", Forecasts: rows, Count: len(rows)}, nil
	}

	f, err := uc.Predict(ctx, productID, limit, true)
	if err != nil {
		return nil, err
	}
	if f.Status != pricing.StatusOK || len(f.Predictions) == 0 {
		return &LatestForecastResult{Status: "no_data"}, nil
	}
	return &LatestForecastResult{Status: "generated", Count: len(f.Predictions), Generated: f}, nil
}

// ModelMetricsResult summarizes stored forecast accuracy across the catalog.
type ModelMetricsResult struct {
	Status             string // "ok" | "no_products"
	Algorithm          string
	Alpha              float64
	Beta               float64
	Gamma              float64
	SeasonalComponents []string
	ProductsAnalyzed   int
	TotalForecasts     int
	ProductMetrics     []models.ForecastStats
}

// ModelMetrics aggregates per-product forecast stats over the most recent
// stored predictions. Products with no stored forecasts are skipped.
func (uc *ForecastUseCase) ModelMetrics(ctx context.Context) (*ModelMetricsResult, error) {
	res := &ModelMetricsResult{
		Status:             "ok",
		Algorithm:          pricing.HoltWintersAlgorithm,
		Alpha:              uc.params.Alpha,
		Beta:               uc.params.Beta,
		Gamma:              uc.params.Gamma,
		SeasonalComponents: []string{"daily", "weekly"},
	}

	products, err := uc.market.Products(ctx, modelMetricsProductCap)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		res.Status = "no_products"
		return res, nil
	}

	for _, p := range products {
		st, err := uc.results.ForecastStats(ctx, p.ID, modelMetricsLastN)
		if err != nil {
			if uc.l != nil {
				uc.l.Warn("forecast stats fetch failed",
					applogger.String("product_id", p.ID),
					applogger.Error(err))
			}
			continue
		}
		if st.ForecastCount == 0 {
			continue
		}
		st.ProductName = p.Name
		st.AvgDemand = stats.Round(st.AvgDemand, 1)
		st.AvgConfidence = stats.Round(st.AvgConfidence, 4)
		res.ProductMetrics = append(res.ProductMetrics, st)
		res.TotalForecasts += st.ForecastCount
	}
	res.ProductsAnalyzed = len(res.ProductMetrics)
	return res, nil
}

func (uc *ForecastUseCase) latestTrendScore(ctx context.Context, productID string) float64 {
	points, err := uc.market.TrendScores(ctx, productID, 1)
	if err != nil || len(points) == 0 {
		return defaultTrendScore
	}
	return points[len(points)-1].Score
}
