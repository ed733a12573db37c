package models

import "time"

// RuleID identifies one decision rule. The set is closed: the engine
// evaluates exactly these six, in table order, plus the synthetic hold.
type RuleID string

const (
	RuleCompetitorUndercut RuleID = "competitor_undercut"
	RuleDemandSurge        RuleID = "demand_surge"
	RuleLowDemandGuard     RuleID = "low_demand_guard"
	RuleSeasonalWindow     RuleID = "seasonal_window"
	RuleTrendSurgePrep     RuleID = "trend_surge_prep"
	RuleMarginFloor        RuleID = "margin_floor"
	RuleHoldDefault        RuleID = "hold_default" // emitted when nothing fires
)

// Urgency orders recommendations for triage and alert routing.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank maps urgency to a comparable level; unknown values rank lowest.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	default:
		return 0
	}
}

// Recommendation is one actionable pricing move.
type Recommendation struct {
	ID         string // set on persistence
	ProductID  string
	Type       string // "increase", "decrease", "discount", "stock", "hold"
	Title      string
	Rationale  string
	Impact     string
	Confidence int // 0-100
	Urgency    Urgency
	Rule       RuleID
	RuleName   string
	CreatedAt  time.Time
}

// DecisionLogEntry records one rule evaluation. The engine emits one entry
// per rule on every run, fired or not.
type DecisionLogEntry struct {
	Rule       RuleID
	RuleName   string
	Inputs     string // formatted signal values the rule saw
	Verdict    string // "ACTION: <title>" or "PASS: within threshold"
	Confidence int
}

// RuleInfo describes one rule in the static table, for API consumers.
type RuleInfo struct {
	ID       RuleID
	Name     string
	Trigger  string
	Action   string
	Priority Urgency
	Status   string
}

// Evaluation is the full decision-engine output for one product.
type Evaluation struct {
	ProductID        string
	ProductName      string
	EvaluatedAt      time.Time
	Signals          *ProductSignals
	Recommendations  []Recommendation
	DecisionLog      []DecisionLogEntry
	Rules            []RuleInfo
	RulesEvaluated   int
	ActionsTriggered int
}
