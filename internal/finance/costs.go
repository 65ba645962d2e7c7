package finance

import "github.com/sells-group/idea-scout/internal/model"

// StartupCosts is the one-off cost of launching a business, in KRW.
type StartupCosts struct {
	Development    int64 `json:"development"`
	Infrastructure int64 `json:"infrastructure"`
	Marketing      int64 `json:"marketing"`
	Operations     int64 `json:"operations"`
	Total          int64 `json:"total"`
}

// MonthlyCosts is the recurring operating cost at a given customer count.
type MonthlyCosts struct {
	Hosting   int64 `json:"hosting"`
	Tools     int64 `json:"tools"`
	Marketing int64 `json:"marketing"`
	Support   int64 `json:"support"`
	Total     int64 `json:"total"`
}

// startupTable holds the tiered launch budgets. Combinations that are not
// listed (agency/large, marketplace/large, tool above small) cost nothing.
var startupTable = map[model.BusinessType]map[model.Scale]StartupCosts{
	model.BusinessSaaS: {
		model.ScaleSmall:  {Development: 2_000_000, Infrastructure: 100_000, Marketing: 500_000, Operations: 200_000},
		model.ScaleMedium: {Development: 5_000_000, Infrastructure: 300_000, Marketing: 1_500_000, Operations: 500_000},
		model.ScaleLarge:  {Development: 15_000_000, Infrastructure: 1_000_000, Marketing: 5_000_000, Operations: 2_000_000},
	},
	model.BusinessAgency: {
		model.ScaleSmall:  {Development: 500_000, Infrastructure: 50_000, Marketing: 1_000_000, Operations: 300_000},
		model.ScaleMedium: {Development: 2_000_000, Infrastructure: 200_000, Marketing: 3_000_000, Operations: 1_000_000},
	},
	model.BusinessMarketplace: {
		model.ScaleSmall:  {Development: 3_000_000, Infrastructure: 200_000, Marketing: 2_000_000, Operations: 500_000},
		model.ScaleMedium: {Development: 10_000_000, Infrastructure: 1_000_000, Marketing: 10_000_000, Operations: 2_000_000},
	},
	model.BusinessTool: {
		model.ScaleSmall: {Development: 1_000_000, Infrastructure: 50_000, Marketing: 300_000, Operations: 100_000},
	},
}

// Hosting tiers, stepped by customer count.
const (
	hostingSmall  = 50_000  // under 100 customers
	hostingMedium = 150_000 // under 1,000 customers
	hostingLarge  = 500_000

	supportPerCustomer = 1_000
)

// StartupCost returns the launch budget for a business type and scale. An
// unknown combination returns all buckets zero.
func StartupCost(bt model.BusinessType, scale model.Scale) StartupCosts {
	c := startupTable[bt][scale]
	c.Total = c.Development + c.Infrastructure + c.Marketing + c.Operations
	return c
}

// MonthlyCost returns the operating cost for a month serving customers.
func MonthlyCost(bt model.BusinessType, scale model.Scale, customers int) MonthlyCosts {
	var c MonthlyCosts

	switch {
	case customers < 100:
		c.Hosting = hostingSmall
	case customers < 1000:
		c.Hosting = hostingMedium
	default:
		c.Hosting = hostingLarge
	}

	switch scale {
	case model.ScaleSmall:
		c.Tools = 50_000
	case model.ScaleMedium:
		c.Tools = 150_000
	default:
		c.Tools = 500_000
	}

	switch bt {
	case model.BusinessSaaS:
		c.Marketing = 2_000_000
		if scale == model.ScaleSmall {
			c.Marketing = 500_000
		}
	case model.BusinessAgency:
		c.Marketing = 1_000_000
		if scale == model.ScaleSmall {
			c.Marketing = 300_000
		}
	}

	c.Support = int64(customers) * supportPerCustomer
	c.Total = c.Hosting + c.Tools + c.Marketing + c.Support
	return c
}
