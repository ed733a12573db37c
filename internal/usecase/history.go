package usecase

import (
	"context"
	"fmt"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
)

// HistoryUseCase provides the daily sales series behind the charts.
type HistoryUseCase struct {
	market domrepo.MarketStore
}

func NewHistoryUseCase(market domrepo.MarketStore) *HistoryUseCase {
	return &HistoryUseCase{market: market}
}

type SalesHistoryParams struct {
	ProductID string
	Window    domrepo.Window
	Limit     int
}

type SalesHistoryResult struct {
	ProductID string
	Window    string
	Count     int
	Sales     []models.SalesRecord
}

func (uc *HistoryUseCase) SalesHistory(ctx context.Context, p SalesHistoryParams) (*SalesHistoryResult, error) {
	if p.ProductID == "" {
		return nil, fmt.Errorf("product id required")
	}
	if !domrepo.IsValidWindow(p.Window) {
		p.Window = domrepo.DefaultWindow()
	}
	if p.Limit <= 0 {
		p.Limit = 90
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	since := time.Now().UTC().AddDate(0, 0, -p.Window.Days())
	rows, err := uc.market.DailySales(ctx, p.ProductID, since, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("sales history: %w", err)
	}

	return &SalesHistoryResult{
		ProductID: p.ProductID,
		Window:    string(p.Window),
		Count:     len(rows),
		Sales:     rows,
	}, nil
}
