// Package finance simulates the economics of a candidate business: startup
// and operating costs, revenue scenarios, break-even and ROI.
package finance

import (
	"time"

	"github.com/sells-group/idea-scout/internal/model"
)

// ScenarioResult combines revenue and cost for one scenario.
type ScenarioResult struct {
	Scenario       Scenario     `json:"scenario"`
	Customers      int          `json:"customers"`
	MonthlyRevenue int64        `json:"monthly_revenue"`
	MonthlyCosts   MonthlyCosts `json:"monthly_costs"`
	MonthlyProfit  int64        `json:"monthly_profit"`
	AnnualRevenue  int64        `json:"annual_revenue"`
	AnnualCosts    int64        `json:"annual_costs"`
	CustomerLTV    int64        `json:"customer_ltv"`
	BreakEven      BreakEven    `json:"break_even"`
	ROI            ROI          `json:"roi"`
}

// RevenueAnalysis is the full financial simulation of a candidate.
type RevenueAnalysis struct {
	BusinessType model.BusinessType `json:"business_type"`
	Scale        model.Scale        `json:"scale"`
	RevenueModel model.RevenueModel `json:"revenue_model"`
	StartupCosts StartupCosts       `json:"startup_costs"`
	Scenarios    []ScenarioResult   `json:"scenarios"`
	Verdict      Verdict            `json:"verdict"`
	AnalyzedAt   time.Time          `json:"analysis_date"`
}

// Scenario returns the result for s, or the zero value if absent.
func (a RevenueAnalysis) Scenario(s Scenario) ScenarioResult {
	for _, r := range a.Scenarios {
		if r.Scenario == s {
			return r
		}
	}
	return ScenarioResult{}
}

// Realistic returns the realistic scenario result.
func (a RevenueAnalysis) Realistic() ScenarioResult {
	return a.Scenario(Realistic)
}

// Simulator runs financial simulations.
type Simulator struct {
	now func() time.Time
}

// NewSimulator creates a Simulator using the wall clock for break-even dates.
func NewSimulator() *Simulator {
	return &Simulator{now: time.Now}
}

// Simulate projects costs and returns for c. Missing type, scale and revenue
// model fall back to the candidate defaults.
func (s *Simulator) Simulate(c model.Candidate) RevenueAnalysis {
	c = c.WithDefaults()
	now := s.now()

	a := RevenueAnalysis{
		BusinessType: c.BusinessType,
		Scale:        c.Scale,
		RevenueModel: c.RevenueModel,
		StartupCosts: StartupCost(c.BusinessType, c.Scale),
		AnalyzedAt:   now,
	}

	for _, rs := range SimulateRevenue(c.RevenueModel, c.Pricing, c.TargetMarketSize) {
		// Operating cost depends on this scenario's own customer count.
		mc := MonthlyCost(c.BusinessType, c.Scale, rs.MonthlyCustomers)
		r := ScenarioResult{
			Scenario:       rs.Scenario,
			Customers:      rs.MonthlyCustomers,
			MonthlyRevenue: rs.MonthlyRevenue,
			MonthlyCosts:   mc,
			MonthlyProfit:  rs.MonthlyRevenue - mc.Total,
			AnnualRevenue:  rs.AnnualRevenue,
			AnnualCosts:    mc.Total * 12,
			CustomerLTV:    rs.CustomerLTV,
		}
		r.BreakEven = ComputeBreakEven(a.StartupCosts.Total, mc.Total, rs.MonthlyRevenue)
		if r.BreakEven.Achievable {
			d := now.Add(time.Duration(r.BreakEven.Months * 30 * 24 * float64(time.Hour)))
			r.BreakEven.Date = &d
		}
		r.ROI = ComputeROI(a.StartupCosts.Total, r.AnnualRevenue, r.AnnualCosts)
		a.Scenarios = append(a.Scenarios, r)
	}

	a.Verdict = Judge(a.Realistic())
	return a
}
