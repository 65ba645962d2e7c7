package discovery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scout/internal/evaluate"
	"github.com/sells-group/idea-scout/internal/finance"
	"github.com/sells-group/idea-scout/internal/model"
)

func outcomeWith(market, revenue int, total float64) evaluate.Outcome {
	return evaluate.Outcome{
		Candidate:    model.Candidate{Name: "X", Category: "Health", Keyword: "X", BusinessType: model.BusinessSaaS},
		MarketScore:  market,
		RevenueScore: revenue,
		TotalScore:   total,
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, model.FailureBoth, failureReason(outcomeWith(55, 50, 53), 60))
	assert.Equal(t, model.FailureLowMarket, failureReason(outcomeWith(55, 70, 59), 60))
	assert.Equal(t, model.FailureLowRevenue, failureReason(outcomeWith(62, 50, 57.2), 60))
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, severityFor(30, 60))
	assert.Equal(t, model.SeverityHigh, severityFor(45, 60))
	assert.Equal(t, model.SeverityHigh, severityFor(31, 60))
	assert.Equal(t, model.SeverityMedium, severityFor(50, 60))
	assert.Equal(t, model.SeverityMedium, severityFor(59, 60))
}

func TestSuggestions(t *testing.T) {
	t.Run("both", func(t *testing.T) {
		got := suggestions(outcomeWith(55, 30, 45), model.FailureBoth, 60)
		require.Len(t, got, 3)
		assert.Equal(t, "market", got[0].Area)
		assert.Equal(t, model.SeverityMedium, got[0].Severity)
		assert.Equal(t, "revenue", got[1].Area)
		assert.Equal(t, model.SeverityCritical, got[1].Severity)
		assert.Equal(t, "strategy", got[2].Area)
		assert.Equal(t, model.SeverityInfo, got[2].Severity)
		assert.Contains(t, got[2].Suggestion, "Health")
	})

	t.Run("low_revenue only", func(t *testing.T) {
		got := suggestions(outcomeWith(62, 50, 57.2), model.FailureLowRevenue, 60)
		require.Len(t, got, 2)
		assert.Equal(t, "revenue", got[0].Area)
		assert.NotEmpty(t, got[0].Suggestion)
	})
}

func TestBuildPlan(t *testing.T) {
	th := evaluate.DefaultThresholds()
	o := outcomeWith(90, 90, 90)
	o.Candidate.Description = "an idea"
	o.Candidate.RevenueModel = model.RevenueSubscription
	o.Revenue = finance.RevenueAnalysis{
		StartupCosts: finance.StartupCosts{Total: 7_000_000},
		Scenarios: []finance.ScenarioResult{
			{Scenario: finance.Realistic, MonthlyRevenue: 8_700_000, MonthlyProfit: 5_000_000},
		},
	}

	plan, err := buildPlan(o, th, "2026-03-14-09", json.RawMessage(`{"k":1}`), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "X", plan.Name)
	assert.Equal(t, int64(104_400_000), plan.ProjectedRevenue12M)
	assert.Equal(t, int64(7_000_000), plan.InvestmentRequired)
	assert.Equal(t, model.RiskMedium, plan.RiskLevel)
	assert.Equal(t, model.PriorityHigh, plan.Priority)
	assert.Equal(t, model.PlanApproved, plan.Status)
	assert.InDelta(t, 9.0, plan.FeasibilityScore, 1e-9)
	assert.Equal(t, "an idea", plan.Description)

	var details map[string]any
	require.NoError(t, json.Unmarshal(plan.Details, &details))
	assert.InDelta(t, 8_700_000, details["estimated_monthly_revenue"], 1e-9)
	assert.Equal(t, map[string]any{"k": float64(1)}, details["analysis"])
}

func TestBuildPlan_Fallbacks(t *testing.T) {
	th := evaluate.DefaultThresholds()
	o := outcomeWith(64, 70, 66.4)
	o.Candidate.Pricing.Monthly = 50_000
	o.Candidate.Budget = 12_000_000
	o.Revenue = finance.RevenueAnalysis{StartupCosts: finance.StartupCosts{Total: 7_000_000}}

	plan, err := buildPlan(o, th, "b", nil, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, int64(50_000*12*20), plan.ProjectedRevenue12M)
	assert.Equal(t, int64(12_000_000), plan.InvestmentRequired)
	assert.Equal(t, model.RiskHigh, plan.RiskLevel)
	assert.Equal(t, model.PriorityMedium, plan.Priority)
	assert.Equal(t, model.PlanFurtherValidation, plan.Status)
	assert.Equal(t, "X", plan.Description)
}
