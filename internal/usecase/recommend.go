package usecase

import (
	"context"
	"fmt"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
	domsvc "PricePulse/internal/domain/service"
	applogger "PricePulse/pkg/logger"
)

const (
	liveEvalFetchLimit = 10
	liveEvalProductCap = 5
)

// AlertNotifier pushes urgent recommendations to an external channel.
type AlertNotifier interface {
	Enabled() bool
	NotifyRecommendations(ctx context.Context, eval *models.Evaluation)
}

// RecommendUseCase runs the decision rules over a product's signal set and
// fans urgent actions out to the alert channel.
type RecommendUseCase struct {
	market   domrepo.MarketStore
	results  domrepo.ResultsStore
	signals  *SignalsUseCase
	engine   domsvc.RecommendationEngine
	notifier AlertNotifier
	l        *applogger.Logger
}

func NewRecommendUseCase(
	market domrepo.MarketStore,
	results domrepo.ResultsStore,
	signals *SignalsUseCase,
	engine domsvc.RecommendationEngine,
	notifier AlertNotifier,
	l *applogger.Logger,
) *RecommendUseCase {
	return &RecommendUseCase{
		market:   market,
		results:  results,
		signals:  signals,
		engine:   engine,
		notifier: notifier,
		l:        l,
	}
}

// Evaluate runs the full rule table against one product and dispatches
// alerts for what fired. Unknown products are evaluated against the default
// reference price rather than rejected.
func (uc *RecommendUseCase) Evaluate(ctx context.Context, productID string) (*models.Evaluation, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id required")
	}

	eval := uc.buildEvaluation(ctx, productID)
	if uc.notifier != nil && uc.notifier.Enabled() {
		// Detached: alert delivery must not hold up the response.
		go uc.notifier.NotifyRecommendations(context.Background(), eval)
	}
	return eval, nil
}

// RecommendationsResult pairs persisted optimizer output with a live rule
// sweep over the head of the catalog.
type RecommendationsResult struct {
	Stored []models.PriceRecommendation
	Live   []models.Recommendation
	Log    []models.DecisionLogEntry
	Rules  []models.RuleInfo
}

// ListAll returns stored price recommendations alongside live rule
// evaluations for the first few products. Either side degrades to empty on
// fetch failure; alerts are not dispatched from this path.
func (uc *RecommendUseCase) ListAll(ctx context.Context, limit int) (*RecommendationsResult, error) {
	if limit <= 0 {
		limit = 50
	}
	res := &RecommendationsResult{Rules: uc.engine.Rules()}

	stored, err := uc.results.ListPriceRecommendations(ctx, limit)
	if err != nil {
		if uc.l != nil {
			uc.l.Warn("stored recommendations fetch failed", applogger.Error(err))
		}
	} else {
		res.Stored = stored
	}

	products, err := uc.market.Products(ctx, liveEvalFetchLimit)
	if err != nil {
		if uc.l != nil {
			uc.l.Warn("product fetch for live evaluation failed", applogger.Error(err))
		}
		return res, nil
	}
	if len(products) > liveEvalProductCap {
		products = products[:liveEvalProductCap]
	}

	for _, p := range products {
		eval := uc.buildEvaluation(ctx, p.ID)
		res.Live = append(res.Live, eval.Recommendations...)
		res.Log = append(res.Log, eval.DecisionLog...)
	}
	return res, nil
}

func (uc *RecommendUseCase) buildEvaluation(ctx context.Context, productID string) *models.Evaluation {
	name := "Unknown"
	price := defaultReferencePrice
	if p, err := uc.market.Product(ctx, productID); err == nil {
		name = p.Name
		price = p.BasePrice
	}

	signals := uc.signals.compute(ctx, productID, name, price)
	recs, log := uc.engine.Evaluate(signals)

	now := time.Now().UTC()
	actions := 0
	for i := range recs {
		recs[i].ProductID = productID
		recs[i].CreatedAt = now
		if recs[i].Rule != models.RuleHoldDefault {
			actions++
		}
	}

	rules := uc.engine.Rules()
	return &models.Evaluation{
		ProductID:        productID,
		ProductName:      name,
		EvaluatedAt:      now,
		Signals:          signals,
		Recommendations:  recs,
		DecisionLog:      log,
		Rules:            rules,
		RulesEvaluated:   len(rules),
		ActionsTriggered: actions,
	}
}
