package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	pkgch "PricePulse/pkg/clickhouse"
	applogger "PricePulse/pkg/logger"
)

// CHMarketStore implements MarketStore backed by ClickHouse. Series reads
// use DESC + LIMIT to bound the scan, then reverse to ascending for the
// analytics, which all expect oldest-first input.
type CHMarketStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHMarketStore(ch *pkgch.Client) *CHMarketStore {
	return &CHMarketStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHMarketStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHMarketStore) CompetitorPrices(ctx context.Context, productID string, limit int) ([]models.CompetitorPrice, error) {
	start := time.Now()
	const q = `
        SELECT price, ts
        FROM pricepulse.competitor_prices
        WHERE product_id = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, productID, limit)
	if err != nil {
		s.logErr("competitor_prices", productID, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.CompetitorPrice, 0, limit)
	for rows.Next() {
		var p models.CompetitorPrice
		if err := rows.Scan(&p.Price, &p.RecordedAt); err != nil {
			s.logErr("competitor_prices", productID, err)
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("competitor_prices", productID, err)
		return nil, err
	}
	reverse(out)
	s.logOk("competitor_prices", productID, len(out), start)
	return out, nil
}

func (s *CHMarketStore) DailySales(ctx context.Context, productID string, since time.Time, limit int) ([]models.SalesRecord, error) {
	start := time.Now()
	const q = `
        SELECT toDate(ts) AS day, toFloat64(sum(units)) AS units
        FROM pricepulse.sales_events
        WHERE product_id = ? AND ts >= ?
        GROUP BY day
        ORDER BY day ASC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, productID, since, limit)
	if err != nil {
		s.logErr("daily_sales", productID, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SalesRecord, 0, limit)
	for rows.Next() {
		var r models.SalesRecord
		if err := rows.Scan(&r.Day, &r.Units); err != nil {
			s.logErr("daily_sales", productID, err)
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logErr("daily_sales", productID, err)
		return nil, err
	}
	s.logOk("daily_sales", productID, len(out), start)
	return out, nil
}

func (s *CHMarketStore) TrendScores(ctx context.Context, productID string, limit int) ([]models.TrendPoint, error) {
	start := time.Now()
	const q = `
        SELECT score, ts
        FROM pricepulse.trend_scores
        WHERE product_id = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, productID, limit)
	if err != nil {
		s.logErr("trend_scores", productID, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.TrendPoint, 0, limit)
	for rows.Next() {
		var p models.TrendPoint
		if err := rows.Scan(&p.Score, &p.RecordedAt); err != nil {
			s.logErr("trend_scores", productID, err)
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("trend_scores", productID, err)
		return nil, err
	}
	reverse(out)
	s.logOk("trend_scores", productID, len(out), start)
	return out, nil
}

// PriceHistory returns per-day average competitor prices, ascending. The
// elasticity estimator joins these against daily sales by calendar day.
func (s *CHMarketStore) PriceHistory(ctx context.Context, productID string, limit int) ([]models.PricePoint, error) {
	start := time.Now()
	const q = `
        SELECT toDate(ts) AS day, avg(price) AS price
        FROM pricepulse.competitor_prices
        WHERE product_id = ?
        GROUP BY day
        ORDER BY day DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, productID, limit)
	if err != nil {
		s.logErr("price_history", productID, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, limit)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Day, &p.Price); err != nil {
			s.logErr("price_history", productID, err)
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("price_history", productID, err)
		return nil, err
	}
	reverse(out)
	s.logOk("price_history", productID, len(out), start)
	return out, nil
}

func (s *CHMarketStore) ReferencePrice(ctx context.Context, productID string) (float64, error) {
	const q = `SELECT base_price FROM pricepulse.products WHERE product_id = ? LIMIT 1`
	var price float64
	err := s.db.QueryRowContext(ctx, q, productID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domrepo.ErrNotFound
	}
	if err != nil {
		s.logErr("reference_price", productID, err)
		return 0, err
	}
	return price, nil
}

func (s *CHMarketStore) Product(ctx context.Context, productID string) (*models.Product, error) {
	const q = `
        SELECT product_id, name, category, base_price
        FROM pricepulse.products
        WHERE product_id = ?
        LIMIT 1
    `
	var p models.Product
	err := s.db.QueryRowContext(ctx, q, productID).Scan(&p.ID, &p.Name, &p.Category, &p.BasePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		s.logErr("product", productID, err)
		return nil, err
	}
	return &p, nil
}

func (s *CHMarketStore) Products(ctx context.Context, limit int) ([]models.Product, error) {
	start := time.Now()
	const q = `
        SELECT product_id, name, category, base_price
        FROM pricepulse.products
        ORDER BY name ASC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		s.logErr("products", "", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Product, 0, limit)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.BasePrice); err != nil {
			s.logErr("products", "", err)
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("products", "", err)
		return nil, err
	}
	s.logOk("products", "", len(out), start)
	return out, nil
}

func (s *CHMarketStore) logErr(query, productID string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse market query error",
		applogger.String("query", query),
		applogger.String("product_id", productID),
		applogger.Error(err),
	)
}

func (s *CHMarketStore) logOk(query, productID string, n int, start time.Time) {
	if s.l == nil {
		return
	}
	s.l.Debug("clickhouse market query ok",
		applogger.String("query", query),
		applogger.String("product_id", productID),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

var _ domrepo.MarketStore = (*CHMarketStore)(nil)
