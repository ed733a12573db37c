package repository

import (
	"context"
	"errors"
	"time"

	"PricePulse/internal/domain/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Window bounds how far back series reads go.
type Window string

const (
	Win30d  Window = "30d"
	Win90d  Window = "90d"
	Win180d Window = "180d"
)

// MarketStore provides read-only access to the series the pricing pipeline
// runs on. "No data" is an empty slice, not an error.
type MarketStore interface {
	CompetitorPrices(ctx context.Context, productID string, limit int) ([]models.CompetitorPrice, error)
	DailySales(ctx context.Context, productID string, since time.Time, limit int) ([]models.SalesRecord, error)
	TrendScores(ctx context.Context, productID string, limit int) ([]models.TrendPoint, error)
	PriceHistory(ctx context.Context, productID string, limit int) ([]models.PricePoint, error)
	ReferencePrice(ctx context.Context, productID string) (float64, error)
	Product(ctx context.Context, productID string) (*models.Product, error)
	Products(ctx context.Context, limit int) ([]models.Product, error)
}

// ResultsStore persists pipeline outputs for later retrieval.
type ResultsStore interface {
	SaveForecast(ctx context.Context, f *models.DemandForecast) error
	LatestForecast(ctx context.Context, productID string, limit int) ([]models.StoredForecast, error)
	ForecastStats(ctx context.Context, productID string, lastN int) (models.ForecastStats, error)
	SavePriceRecommendation(ctx context.Context, rec *models.PriceRecommendation) error
	ListPriceRecommendations(ctx context.Context, limit int) ([]models.PriceRecommendation, error)
}
