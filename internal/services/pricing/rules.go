package pricing

import (
	"fmt"
	"math"

	"PricePulse/internal/domain/models"
	domsvc "PricePulse/internal/domain/service"
	"PricePulse/internal/services/stats"
)

// Verdict prefixes and the fixed confidence for rules that do not fire.
const (
	verdictPass    = "PASS: within threshold"
	passConfidence = 95
)

// RuleThresholds are the trigger bounds for the decision table.
type RuleThresholds struct {
	PositionOverpriced  float64 // position index above this fires the undercut response
	PositionUnderpriced float64 // position index below this fires margin floor protection
	GrowthSurge         float64
	GrowthDrop          float64
	GrowthLag           float64 // growth below this still counts as "hasn't caught up"
	MomentumSurge       float64
	MomentumPrep        float64
	SeasonalLow         float64
}

// DefaultRuleThresholds returns the stock trigger bounds.
func DefaultRuleThresholds() RuleThresholds {
	return RuleThresholds{
		PositionOverpriced:  1.10,
		PositionUnderpriced: 0.85,
		GrowthSurge:         0.15,
		GrowthDrop:          -0.15,
		GrowthLag:           0.05,
		MomentumSurge:       10,
		MomentumPrep:        15,
		SeasonalLow:         0.9,
	}
}

// ruleSignals flattens a signal set into the values the rules read, with
// the neutral defaults assumed when a block is missing.
type ruleSignals struct {
	position   float64
	growth     float64
	momentum   float64
	seasonal   float64
	volatility string
}

func flattenSignals(s *models.ProductSignals) ruleSignals {
	sig := ruleSignals{position: 1.0, seasonal: 1.0, volatility: "low"}
	if s == nil {
		return sig
	}
	if s.Pricing != nil {
		sig.position = s.Pricing.PricePositionIndex
		sig.volatility = s.Pricing.PriceVolatility
	}
	if s.Demand != nil {
		sig.growth = s.Demand.DemandGrowthRate
		sig.seasonal = s.Demand.SeasonalIndex
	}
	if s.Trend != nil {
		sig.momentum = s.Trend.TrendMomentum
	}
	return sig
}

// rule is one table entry. eval returns nil when the rule does not fire;
// Rule and RuleName are stamped from the entry afterwards.
type rule struct {
	id       models.RuleID
	name     string
	trigger  string
	action   string
	priority models.Urgency
	inputs   func(sig ruleSignals) string
	eval     func(sig ruleSignals) *models.Recommendation
}

// RecommendationEngine evaluates the closed six-rule table against a signal
// set. Rules never short-circuit each other; when none fires, a single hold
// recommendation is emitted instead.
type RecommendationEngine struct {
	thresholds RuleThresholds
	table      []rule
}

func NewRecommendationEngine(thresholds RuleThresholds) *RecommendationEngine {
	e := &RecommendationEngine{thresholds: thresholds}
	t := thresholds
	e.table = []rule{
		{
			id:       models.RuleCompetitorUndercut,
			name:     "Competitor Undercut Response",
			trigger:  fmt.Sprintf("price_position_index > %.2f", t.PositionOverpriced),
			action:   "Match price within 5% if margin > 15%",
			priority: models.UrgencyCritical,
			inputs: func(sig ruleSignals) string {
				return fmt.Sprintf("position=%.2f", sig.position)
			},
			eval: e.competitorUndercut,
		},
		{
			id:       models.RuleDemandSurge,
			name:     "Demand Surge Capture",
			trigger:  fmt.Sprintf("demand_growth_rate > %.2f AND trend_momentum > %.0f", t.GrowthSurge, t.MomentumSurge),
			action:   "Increase price by 5-8% gradually",
			priority: models.UrgencyHigh,
			inputs: func(sig ruleSignals) string {
				return fmt.Sprintf("growth=%.2f, momentum=%.0f", sig.growth, sig.momentum)
			},
			eval: e.demandSurge,
		},
		{
			id:       models.RuleLowDemandGuard,
			name:     "Low Demand Guard",
			trigger:  fmt.Sprintf("demand_growth_rate < %.2f", t.GrowthDrop),
			action:   "Offer 10% discount, avoid overstock",
			priority: models.UrgencyHigh,
			inputs: func(sig ruleSignals) string {
				return fmt.Sprintf("growth=%.2f", sig.growth)
			},
			eval: e.lowDemandGuard,
		},
		{
			id:       models.RuleSeasonalWindow,
			name:     "Seasonal Discount Window",
			trigger:  fmt.Sprintf("seasonal_index < %.1f AND demand_growth < 0", t.SeasonalLow),
			action:   "Apply 10-15% discount tier",
			priority: models.UrgencyMedium,
			inputs: func(sig ruleSignals) string {
				return fmt.Sprintf("seasonal=%.2f", sig.seasonal)
			},
			eval: e.seasonalWindow,
		},
		{
			id:       models.RuleTrendSurgePrep,
			name:     "Trend Surge Preparation",
			trigger:  fmt.Sprintf("trend_momentum > %.0f AND demand_growth < %.2f", t.MomentumPrep, t.GrowthLag),
			action:   "Prepare for demand surge, increase stock",
			priority: models.UrgencyMedium,
			inputs: func(sig ruleSignals) string {
				return fmt.Sprintf("momentum=%.0f, growth=%.2f", sig.momentum, sig.growth)
			},
			eval: e.trendSurgePrep,
		},
		{
			id:       models.RuleMarginFloor,
			name:     "Margin Floor Protection",
			trigger:  fmt.Sprintf("price_position_index < %.2f", t.PositionUnderpriced),
			action:   "Block further price decrease, escalate to review",
			priority: models.UrgencyCritical,
			inputs: func(sig ruleSignals) string {
				return fmt.Sprintf("position=%.2f", sig.position)
			},
			eval: e.marginFloor,
		},
	}
	return e
}

// Rules exposes the static table for API consumers.
func (e *RecommendationEngine) Rules() []models.RuleInfo {
	out := make([]models.RuleInfo, 0, len(e.table))
	for _, r := range e.table {
		out = append(out, models.RuleInfo{
			ID:       r.id,
			Name:     r.name,
			Trigger:  r.trigger,
			Action:   r.action,
			Priority: r.priority,
			Status:   "active",
		})
	}
	return out
}

// Evaluate runs every rule against the signal set. The audit log always has
// one entry per table rule, fired or not.
func (e *RecommendationEngine) Evaluate(signals *models.ProductSignals) ([]models.Recommendation, []models.DecisionLogEntry) {
	sig := flattenSignals(signals)

	recs := make([]models.Recommendation, 0, len(e.table))
	for _, r := range e.table {
		if rec := r.eval(sig); rec != nil {
			rec.Rule = r.id
			rec.RuleName = r.name
			recs = append(recs, *rec)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Type:       "hold",
			Title:      "Maintain current pricing",
			Rationale:  "All indicators are within normal ranges. No action required at this time.",
			Impact:     "Stable",
			Confidence: 92,
			Urgency:    models.UrgencyLow,
			Rule:       models.RuleHoldDefault,
			RuleName:   "Default Assessment",
		})
	}

	log := make([]models.DecisionLogEntry, 0, len(e.table))
	for _, r := range e.table {
		entry := models.DecisionLogEntry{
			Rule:       r.id,
			RuleName:   r.name,
			Inputs:     r.inputs(sig),
			Verdict:    verdictPass,
			Confidence: passConfidence,
		}
		for _, rec := range recs {
			if rec.Rule == r.id {
				entry.Verdict = "ACTION: " + rec.Title
				entry.Confidence = rec.Confidence
				break
			}
		}
		log = append(log, entry)
	}

	return recs, log
}

// Rule 1: reference price sits too far above the competitor average.
func (e *RecommendationEngine) competitorUndercut(sig ruleSignals) *models.Recommendation {
	if sig.position <= e.thresholds.PositionOverpriced {
		return nil
	}
	pct := stats.Round((sig.position-1.0)*100, 1)
	return &models.Recommendation{
		Type:  "decrease",
		Title: fmt.Sprintf("Reduce price by %.0f%% to match market", pct),
		Rationale: fmt.Sprintf(
			"Your price is %.1f%% above competitor average. Market volatility is %s. Adjust to maintain competitiveness.",
			pct, sig.volatility),
		Impact:     fmt.Sprintf("-%.0f%%", pct),
		Confidence: min(95, 70+int(pct*2)),
		Urgency:    models.UrgencyHigh,
	}
}

// Rule 2: demand and trend interest rising together.
func (e *RecommendationEngine) demandSurge(sig ruleSignals) *models.Recommendation {
	if sig.growth <= e.thresholds.GrowthSurge || sig.momentum <= e.thresholds.MomentumSurge {
		return nil
	}
	increase := min(8, max(3, int(sig.growth*30)))
	return &models.Recommendation{
		Type:  "increase",
		Title: fmt.Sprintf("Increase price by %d%%", increase),
		Rationale: fmt.Sprintf(
			"Demand growing at %.0f%% with trend momentum of %.0f. Market interest is accelerating; safe to capture margin.",
			sig.growth*100, sig.momentum),
		Impact:     fmt.Sprintf("+%d%%", increase),
		Confidence: min(95, 65+int(sig.momentum)),
		Urgency:    models.UrgencyHigh,
	}
}

// Rule 3: demand falling hard enough to need a counter.
func (e *RecommendationEngine) lowDemandGuard(sig ruleSignals) *models.Recommendation {
	if sig.growth >= e.thresholds.GrowthDrop {
		return nil
	}
	discount := min(15, max(5, int(math.Abs(sig.growth)*50)))
	return &models.Recommendation{
		Type:  "discount",
		Title: fmt.Sprintf("Offer %d%% discount", discount),
		Rationale: fmt.Sprintf(
			"Demand falling at %.0f%%. A targeted discount could stabilize sales and capture market share.",
			sig.growth*100),
		Impact:     fmt.Sprintf("+%d%% volume", discount*2),
		Confidence: min(90, 60+int(math.Abs(sig.growth)*100)),
		Urgency:    models.UrgencyMedium,
	}
}

// Rule 4: low season combined with declining demand.
func (e *RecommendationEngine) seasonalWindow(sig ruleSignals) *models.Recommendation {
	if sig.seasonal >= e.thresholds.SeasonalLow || sig.growth >= 0 {
		return nil
	}
	return &models.Recommendation{
		Type:  "discount",
		Title: "Apply seasonal discount (10-15%)",
		Rationale: fmt.Sprintf(
			"Seasonal index at %.2f (below normal). Demand is declining; a seasonal promotion can maintain volume.",
			sig.seasonal),
		Impact:     "+12% volume",
		Confidence: min(85, 55+int((1-sig.seasonal)*200)),
		Urgency:    models.UrgencyMedium,
	}
}

// Rule 5: trend interest surging before demand catches up.
func (e *RecommendationEngine) trendSurgePrep(sig ruleSignals) *models.Recommendation {
	if sig.momentum <= e.thresholds.MomentumPrep || sig.growth >= e.thresholds.GrowthLag {
		return nil
	}
	return &models.Recommendation{
		Type:  "stock",
		Title: "Prepare for demand surge",
		Rationale: fmt.Sprintf(
			"Trend momentum at +%.0f but demand hasn't surged yet. Historical pattern suggests imminent demand spike. Increase stock.",
			sig.momentum),
		Impact:     "+20-40% demand expected",
		Confidence: min(88, 60+int(sig.momentum*1.5)),
		Urgency:    models.UrgencyHigh,
	}
}

// Rule 6: reference price sits too far below the competitor average.
func (e *RecommendationEngine) marginFloor(sig ruleSignals) *models.Recommendation {
	if sig.position >= e.thresholds.PositionUnderpriced {
		return nil
	}
	pct := stats.Round((1.0-sig.position)*100, 1)
	return &models.Recommendation{
		Type:  "increase",
		Title: fmt.Sprintf("Raise price: %.0f%% below market", pct),
		Rationale: fmt.Sprintf(
			"Your price is %.1f%% below competitor average. This may erode margins without capturing proportional volume.",
			pct),
		Impact:     fmt.Sprintf("+%.0f%% margin", pct),
		Confidence: min(97, 80+int(pct)),
		Urgency:    models.UrgencyCritical,
	}
}

var _ domsvc.RecommendationEngine = (*RecommendationEngine)(nil)
