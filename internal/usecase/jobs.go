package usecase

import (
	"context"
	"errors"
	"fmt"

	domrepo "PricePulse/internal/domain/repository"
	applogger "PricePulse/pkg/logger"
	"PricePulse/pkg/queue"
)

// Queue message types. Payloads are JSON objects matching the payload structs.
const (
	MsgForecastRefresh = "forecast.refresh"
	MsgSalesSimulate   = "sales.simulate"
)

type ForecastRefreshPayload struct {
	ProductID   string `json:"product_id"`
	HorizonDays int    `json:"horizon_days"`
}

// ForecastRefreshJob recomputes and persists the demand forecast for one
// product in the background.
type ForecastRefreshJob struct {
	forecast *ForecastUseCase
	l        *applogger.Logger
}

func NewForecastRefreshJob(forecast *ForecastUseCase, l *applogger.Logger) *ForecastRefreshJob {
	return &ForecastRefreshJob{forecast: forecast, l: l}
}

func (j *ForecastRefreshJob) Name() string { return "forecast_refresh" }
func (j *ForecastRefreshJob) Type() string { return MsgForecastRefresh }

func (j *ForecastRefreshJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ForecastRefreshPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if p.ProductID == "" {
		j.l.Warn("forecast refresh without product id dropped")
		return nil
	}
	if p.HorizonDays <= 0 {
		p.HorizonDays = 14
	}

	f, err := j.forecast.Predict(ctx, p.ProductID, p.HorizonDays, true)
	if err != nil {
		return err
	}
	j.l.Info("forecast refreshed",
		applogger.String("product_id", p.ProductID),
		applogger.Int("horizon_days", f.HorizonDays),
		applogger.String("status", f.Status))
	return nil
}

type SalesSimulatePayload struct {
	ProductID  string  `json:"product_id"`
	Days       int     `json:"days"`
	BasePrice  float64 `json:"base_price"`
	BaseDemand float64 `json:"base_demand"`
}

// SalesSimulateJob seeds synthetic sales history in the background.
type SalesSimulateJob struct {
	sim *SimulateUseCase
	l   *applogger.Logger
}

func NewSalesSimulateJob(sim *SimulateUseCase, l *applogger.Logger) *SalesSimulateJob {
	return &SalesSimulateJob{sim: sim, l: l}
}

func (j *SalesSimulateJob) Name() string { return "sales_simulate" }
func (j *SalesSimulateJob) Type() string { return MsgSalesSimulate }

func (j *SalesSimulateJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[SalesSimulatePayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	summary, err := j.sim.Seed(ctx, SeedParams{
		ProductID:  p.ProductID,
		Days:       p.Days,
		BasePrice:  p.BasePrice,
		BaseDemand: p.BaseDemand,
	})
	// Retrying cannot fix a missing product, and a held lock means another
	// seed is already doing the work.
	if errors.Is(err, domrepo.ErrNotFound) || errors.Is(err, ErrSimulationRunning) {
		j.l.Warn("simulation job dropped",
			applogger.String("product_id", p.ProductID),
			applogger.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	j.l.Info("simulation job done",
		applogger.String("product_id", summary.ProductID),
		applogger.Int("records", summary.Stored))
	return nil
}

var (
	_ queue.Job = (*ForecastRefreshJob)(nil)
	_ queue.Job = (*SalesSimulateJob)(nil)
)
