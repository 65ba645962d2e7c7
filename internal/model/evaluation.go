package model

import (
	"encoding/json"
	"time"
)

// Recommendation is the evaluator's tier for a total score.
type Recommendation string

const (
	RecommendImmediate      Recommendation = "IMMEDIATE_ACTION"
	RecommendFurther        Recommendation = "FURTHER_VALIDATION"
	RecommendNotRecommended Recommendation = "NOT_RECOMMENDED"
)

// Route is the destination an evaluated candidate was sent to.
type Route string

const (
	RouteRejected Route = "rejected"
	RoutePromoted Route = "promoted"
)

// FailureReason explains why a candidate was rejected.
type FailureReason string

const (
	FailureLowMarket  FailureReason = "low_market"
	FailureLowRevenue FailureReason = "low_revenue"
	FailureBoth       FailureReason = "both"
)

// Severity tags an improvement suggestion.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
)

// Suggestion is a remediation hint attached to a rejected candidate.
type Suggestion struct {
	Area       string   `json:"area"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion"`
}

// EvaluationRecord is the append-only outcome of one evaluation.
type EvaluationRecord struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Category           string          `json:"category"`
	Keyword            string          `json:"keyword"`
	BusinessType       BusinessType    `json:"business_type"`
	Candidate          Candidate       `json:"candidate"`
	MarketScore        int             `json:"market_score"`
	RevenueScore       int             `json:"revenue_score"`
	TotalScore         float64         `json:"total_score"`
	Recommendation     Recommendation  `json:"recommendation"`
	DiscoveryBatch     string          `json:"discovery_batch"`
	SavedToPromoted    bool            `json:"saved_to_promoted"`
	AnalysisDurationMs int64           `json:"analysis_duration_ms"`
	Analysis           json.RawMessage `json:"analysis,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// RejectedCandidate is written for evaluations below the reject threshold.
type RejectedCandidate struct {
	ID             string        `json:"id"`
	EvaluationID   string        `json:"evaluation_id"`
	Name           string        `json:"name"`
	Category       string        `json:"category"`
	Keyword        string        `json:"keyword"`
	TotalScore     float64       `json:"total_score"`
	MarketScore    int           `json:"market_score"`
	RevenueScore   int           `json:"revenue_score"`
	FailureReason  FailureReason `json:"failure_reason"`
	Suggestions    []Suggestion  `json:"improvement_suggestions"`
	DiscoveryBatch string        `json:"discovery_batch"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PlanStatus is the review state of a promoted plan.
type PlanStatus string

const (
	PlanApproved          PlanStatus = "approved"
	PlanFurtherValidation PlanStatus = "further_validation"
)

// RiskLevel is a coarse risk tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Priority is a coarse execution priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PromotedPlan is a persisted plan for a candidate that cleared the reject
// threshold. Plans are unique by Name.
type PromotedPlan struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Category            string          `json:"category"`
	Description         string          `json:"description"`
	RevenueModel        RevenueModel    `json:"revenue_model"`
	ProjectedRevenue12M int64           `json:"projected_revenue_12m"`
	InvestmentRequired  int64           `json:"investment_required"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	Priority            Priority        `json:"priority"`
	Status              PlanStatus      `json:"status"`
	FeasibilityScore    float64         `json:"feasibility_score"`
	TotalScore          float64         `json:"total_score"`
	MarketScore         int             `json:"market_score"`
	RevenueScore        int             `json:"revenue_score"`
	Keyword             string          `json:"keyword"`
	DiscoveryBatch      string          `json:"discovery_batch"`
	Details             json.RawMessage `json:"details,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
