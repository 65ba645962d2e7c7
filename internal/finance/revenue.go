package finance

import (
	"math"

	"github.com/sells-group/idea-scout/internal/model"
)

// Scenario names one of the three conversion assumptions.
type Scenario string

// Scenarios.
const (
	Conservative Scenario = "conservative"
	Realistic    Scenario = "realistic"
	Optimistic   Scenario = "optimistic"
)

// conversionPercents is the share of the target market that becomes a
// paying customer each month. Ordered from least to most optimistic.
var conversionPercents = []struct {
	scenario Scenario
	percent  int
}{
	{Conservative, 1},
	{Realistic, 3},
	{Optimistic, 5},
}

const defaultTxPerMonth = 5

// RevenueScenario is the projected revenue under one scenario.
type RevenueScenario struct {
	Scenario         Scenario `json:"scenario"`
	ConversionRate   float64  `json:"conversion_rate"`
	MonthlyCustomers int      `json:"monthly_customers"`
	MonthlyRevenue   int64    `json:"monthly_revenue"`
	AnnualRevenue    int64    `json:"annual_revenue"`
	CustomerLTV      int64    `json:"customer_ltv"` // annual revenue per customer, 0 without customers
}

// SimulateRevenue projects revenue for each scenario in conservative,
// realistic, optimistic order. An unknown revenue model earns nothing.
func SimulateRevenue(rm model.RevenueModel, p model.Pricing, marketSize int) []RevenueScenario {
	out := make([]RevenueScenario, 0, len(conversionPercents))
	for _, cp := range conversionPercents {
		// Integer percent keeps customer counts exact (10,000 at 3% is 300).
		customers := max(marketSize, 0) * cp.percent / 100
		monthly := monthlyRevenue(rm, p, customers)

		s := RevenueScenario{
			Scenario:         cp.scenario,
			ConversionRate:   float64(cp.percent) / 100,
			MonthlyCustomers: customers,
			MonthlyRevenue:   monthly,
			AnnualRevenue:    monthly * 12,
		}
		if customers > 0 {
			s.CustomerLTV = s.AnnualRevenue / int64(customers)
		}
		out = append(out, s)
	}
	return out
}

func monthlyRevenue(rm model.RevenueModel, p model.Pricing, customers int) int64 {
	switch rm {
	case model.RevenueSubscription:
		return int64(customers) * p.Monthly
	case model.RevenueOneTime:
		return int64(customers) * p.OneTime
	case model.RevenueCommission:
		tx := p.TxPerMonth
		if tx <= 0 {
			tx = defaultTxPerMonth
		}
		return int64(math.Round(float64(customers) * float64(tx) * float64(p.AvgTransaction) * p.CommissionRate))
	default:
		return 0
	}
}
