package models

import "time"

// SalesEvent is a single observed sale: units of a product sold at a price.
// Timestamp is unix seconds.
type SalesEvent struct {
	ProductID string
	Timestamp int64
	Units     int64
	Price     float64
}

// SalesRecord is a daily sales aggregate, the unit the analytics run on.
type SalesRecord struct {
	Day   time.Time
	Units float64
}

// CompetitorPrice is one observed competitor price point.
type CompetitorPrice struct {
	Price      float64
	RecordedAt time.Time
}

// PricePoint is a per-day average competitor price, used for elasticity pairing.
type PricePoint struct {
	Day   time.Time
	Price float64
}

// TrendPoint is one search-interest observation (0-100 scale).
type TrendPoint struct {
	Score      float64
	RecordedAt time.Time
}

// Product is the catalog entry the pipeline evaluates.
type Product struct {
	ID        string
	Name      string
	Category  string
	BasePrice float64
}
