package discovery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/evaluate"
	"github.com/sells-group/idea-scout/internal/model"
)

// Severity escalation, as distance below the reject threshold.
const (
	criticalGap = 30
	highGap     = 15
)

// failureReason names the sub-scores below the reject threshold. A total
// below the threshold always has at least one such sub-score, since the
// total is a weighted mean of the two.
func failureReason(o evaluate.Outcome, rejectBelow float64) model.FailureReason {
	lowMarket := float64(o.MarketScore) < rejectBelow
	lowRevenue := float64(o.RevenueScore) < rejectBelow
	switch {
	case lowMarket && lowRevenue:
		return model.FailureBoth
	case lowMarket:
		return model.FailureLowMarket
	default:
		return model.FailureLowRevenue
	}
}

func severityFor(score int, rejectBelow float64) model.Severity {
	gap := rejectBelow - float64(score)
	switch {
	case gap >= criticalGap:
		return model.SeverityCritical
	case gap >= highGap:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

var marketHints = map[model.Severity]string{
	model.SeverityCritical: "Market demand is very weak. Pick a different domain or audience.",
	model.SeverityHigh:     "Market fit is weak. Narrow the audience or reposition against competitors.",
	model.SeverityMedium:   "Market fit is borderline. Sharpen differentiation before building.",
}

var revenueHints = map[model.Severity]string{
	model.SeverityCritical: "The revenue model does not cover costs. Rework pricing and the cost base.",
	model.SeverityHigh:     "Returns are too low. Raise prices or add a recurring revenue stream to improve ROI.",
	model.SeverityMedium:   "Profitability is borderline. Tune pricing or reduce operating costs.",
}

// suggestions builds the remediation hints for a rejected outcome. A
// strategy hint naming the category is always appended.
func suggestions(o evaluate.Outcome, reason model.FailureReason, rejectBelow float64) []model.Suggestion {
	var out []model.Suggestion
	if reason == model.FailureLowMarket || reason == model.FailureBoth {
		sev := severityFor(o.MarketScore, rejectBelow)
		out = append(out, model.Suggestion{Area: "market", Severity: sev, Suggestion: marketHints[sev]})
	}
	if reason == model.FailureLowRevenue || reason == model.FailureBoth {
		sev := severityFor(o.RevenueScore, rejectBelow)
		out = append(out, model.Suggestion{Area: "revenue", Severity: sev, Suggestion: revenueHints[sev]})
	}
	out = append(out, model.Suggestion{
		Area:       "strategy",
		Severity:   model.SeverityInfo,
		Suggestion: fmt.Sprintf("Study what succeeds in the %s category and borrow its positioning.", o.Candidate.Category),
	})
	return out
}

// fallbackCustomers sizes the 12-month revenue projection when the realistic
// scenario earns nothing.
const fallbackCustomers = 20

type planDetails struct {
	AnalysisScore  float64         `json:"analysis_score"`
	MarketKeyword  string          `json:"market_keyword"`
	BusinessType   string          `json:"business_type"`
	Variant        string          `json:"variant,omitempty"`
	StartupCost    int64           `json:"startup_cost"`
	MonthlyRevenue int64           `json:"estimated_monthly_revenue"`
	MonthlyProfit  int64           `json:"estimated_monthly_profit"`
	Recommendation string          `json:"recommendation"`
	DiscoveredAt   time.Time       `json:"discovered_at"`
	Analysis       json.RawMessage `json:"analysis"`
}

// buildPlan turns a promoted outcome into a plan row. The store keeps the
// identity and descriptive fields of an existing plan and only refreshes the
// scores, feasibility, priority, risk and status.
func buildPlan(o evaluate.Outcome, th evaluate.Thresholds, batch string, analysis json.RawMessage, now time.Time) (*model.PromotedPlan, error) {
	c := o.Candidate
	realistic := o.Revenue.Realistic()

	annual := realistic.MonthlyRevenue * 12
	if annual <= 0 {
		annual = c.Pricing.Monthly * 12 * fallbackCustomers
	}
	investment := c.Budget
	if investment <= 0 {
		investment = o.Revenue.StartupCosts.Total
	}

	risk := model.RiskHigh
	if o.TotalScore > 75 {
		risk = model.RiskMedium
	}
	priority := model.PriorityMedium
	if o.TotalScore >= 85 {
		priority = model.PriorityHigh
	}
	status := model.PlanFurtherValidation
	if o.TotalScore >= th.PromoteAtOrAbove {
		status = model.PlanApproved
	}

	details, err := json.Marshal(planDetails{
		AnalysisScore:  o.TotalScore,
		MarketKeyword:  c.Keyword,
		BusinessType:   string(c.BusinessType),
		Variant:        c.Variant,
		StartupCost:    o.Revenue.StartupCosts.Total,
		MonthlyRevenue: realistic.MonthlyRevenue,
		MonthlyProfit:  realistic.MonthlyProfit,
		Recommendation: string(o.Recommendation),
		DiscoveredAt:   now,
		Analysis:       analysis,
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: marshal plan details")
	}

	description := c.Description
	if description == "" {
		description = c.Name
	}

	return &model.PromotedPlan{
		Name:                c.Name,
		Category:            c.Category,
		Description:         description,
		RevenueModel:        c.RevenueModel,
		ProjectedRevenue12M: annual,
		InvestmentRequired:  investment,
		RiskLevel:           risk,
		Priority:            priority,
		Status:              status,
		FeasibilityScore:    o.TotalScore / 10,
		TotalScore:          o.TotalScore,
		MarketScore:         o.MarketScore,
		RevenueScore:        o.RevenueScore,
		Keyword:             c.Keyword,
		DiscoveryBatch:      batch,
		Details:             details,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}
