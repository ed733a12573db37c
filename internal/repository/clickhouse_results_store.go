package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	pkgch "PricePulse/pkg/clickhouse"
	applogger "PricePulse/pkg/logger"
)

// CHResultsStore persists pipeline outputs (forecasts, optimizer picks)
// in the same ClickHouse database the ingest writes to.
type CHResultsStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHResultsStore(ch *pkgch.Client) *CHResultsStore {
	return &CHResultsStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHResultsStore) SetLogger(l *applogger.Logger) { s.l = l }

// SaveForecast writes one row per predicted day in a single multi-row insert.
func (s *CHResultsStore) SaveForecast(ctx context.Context, f *models.DemandForecast) error {
	if f == nil || len(f.Predictions) == 0 {
		return nil
	}
	createdAt := f.ComputedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	values := make([]string, 0, len(f.Predictions))
	args := make([]interface{}, 0, len(f.Predictions)*7)
	for _, p := range f.Predictions {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			f.ProductID,
			p.Date,
			p.Demand,
			p.LowerBound,
			p.UpperBound,
			f.Confidence,
			createdAt,
		)
	}
	q := fmt.Sprintf(
		"INSERT INTO pricepulse.demand_forecasts (product_id, forecast_date, demand, lower_bound, upper_bound, confidence, created_at) VALUES %s",
		strings.Join(values, ","),
	)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save forecast: %w", err)
	}
	return nil
}

// LatestForecast returns the most recent stored rows, oldest first.
func (s *CHResultsStore) LatestForecast(ctx context.Context, productID string, limit int) ([]models.StoredForecast, error) {
	const q = `
        SELECT product_id, forecast_date, demand, lower_bound, upper_bound, confidence, created_at
        FROM pricepulse.demand_forecasts
        WHERE product_id = ?
        ORDER BY forecast_date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("latest forecast: %w", err)
	}
	defer rows.Close()

	out := make([]models.StoredForecast, 0, limit)
	for rows.Next() {
		var f models.StoredForecast
		if err := rows.Scan(&f.ProductID, &f.ForecastDate, &f.Demand, &f.LowerBound, &f.UpperBound, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	reverse(out)
	return out, nil
}

// ForecastStats summarizes the last N stored rows for one product.
func (s *CHResultsStore) ForecastStats(ctx context.Context, productID string, lastN int) (models.ForecastStats, error) {
	const q = `
        SELECT count() AS c, avg(demand) AS avg_demand, avg(confidence) AS avg_confidence
        FROM (
            SELECT demand, confidence
            FROM pricepulse.demand_forecasts
            WHERE product_id = ?
            ORDER BY created_at DESC
            LIMIT ?
        )
    `
	var (
		count  uint64
		demand float64
		conf   float64
	)
	if err := s.db.QueryRowContext(ctx, q, productID, lastN).Scan(&count, &demand, &conf); err != nil {
		return models.ForecastStats{}, fmt.Errorf("forecast stats: %w", err)
	}
	stats := models.ForecastStats{ProductID: productID, ForecastCount: int(count)}
	if count > 0 {
		stats.AvgDemand = demand
		stats.AvgConfidence = conf
	}
	return stats, nil
}

// SavePriceRecommendation stores one optimizer output row. A uuid is
// assigned when the caller did not set one.
func (s *CHResultsStore) SavePriceRecommendation(ctx context.Context, rec *models.PriceRecommendation) error {
	if rec == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const q = `
        INSERT INTO pricepulse.price_recommendations (id, product_id, recommended_price, expected_revenue, confidence, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q, rec.ID, rec.ProductID, rec.RecommendedPrice, rec.ExpectedRevenue, rec.Confidence, rec.CreatedAt); err != nil {
		return fmt.Errorf("save price recommendation: %w", err)
	}
	return nil
}

// ListPriceRecommendations returns the most recent stored rows with the
// product name joined in.
func (s *CHResultsStore) ListPriceRecommendations(ctx context.Context, limit int) ([]models.PriceRecommendation, error) {
	const q = `
        SELECT r.id, r.product_id, p.name, r.recommended_price, r.expected_revenue, r.confidence, r.created_at
        FROM pricepulse.price_recommendations AS r
        LEFT JOIN pricepulse.products AS p ON p.product_id = r.product_id
        ORDER BY r.created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list price recommendations: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceRecommendation, 0, limit)
	for rows.Next() {
		var r models.PriceRecommendation
		if err := rows.Scan(&r.ID, &r.ProductID, &r.ProductName, &r.RecommendedPrice, &r.ExpectedRevenue, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price recommendation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.ResultsStore = (*CHResultsStore)(nil)
