package finance

import (
	"fmt"
	"math"
	"time"
)

// BreakEven describes when cumulative profit covers the startup cost.
type BreakEven struct {
	Achievable    bool       `json:"break_even_possible"`
	Months        float64    `json:"months,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	MonthlyProfit int64      `json:"monthly_profit,omitempty"`
	AnnualProfit  int64      `json:"annual_profit,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// ComputeBreakEven returns the months of profit needed to recover
// startupCost. Break-even is not achievable when revenue does not exceed
// cost.
func ComputeBreakEven(startupCost, monthlyCost, monthlyRevenue int64) BreakEven {
	if monthlyRevenue <= monthlyCost {
		return BreakEven{
			Message: fmt.Sprintf("monthly revenue %d does not exceed monthly cost %d; raise prices or cut costs", monthlyRevenue, monthlyCost),
		}
	}
	profit := monthlyRevenue - monthlyCost
	return BreakEven{
		Achievable:    true,
		Months:        float64(startupCost) / float64(profit),
		MonthlyProfit: profit,
		AnnualProfit:  profit * 12,
	}
}

// ROI ratings.
const (
	RatingExcellent = "excellent"
	RatingVeryGood  = "very good"
	RatingGood      = "good"
	RatingFair      = "fair"
	RatingPoor      = "poor"
	RatingUnrated   = "unrated"
)

// ROI is the first-year return on the startup cost.
type ROI struct {
	AnnualProfit int64    `json:"annual_profit"`
	Percentage   float64  `json:"roi_percentage"`
	PaybackYears *float64 `json:"payback_period_years"` // nil unless profitable
	Rating       string   `json:"rating"`
}

// ComputeROI returns the annual return on startupCost. With no startup cost
// there is nothing to return on, so the percentage is 0 and the ROI is
// unrated.
func ComputeROI(startupCost, annualRevenue, annualCost int64) ROI {
	r := ROI{AnnualProfit: annualRevenue - annualCost}
	if startupCost <= 0 {
		r.Rating = RatingUnrated
		return r
	}

	r.Percentage = round(float64(r.AnnualProfit)/float64(startupCost)*100, 2)
	if r.AnnualProfit > 0 {
		years := round(float64(startupCost)/float64(r.AnnualProfit), 2)
		r.PaybackYears = &years
	}
	r.Rating = rateROI(r.Percentage)
	return r
}

func rateROI(pct float64) string {
	switch {
	case pct >= 200:
		return RatingExcellent
	case pct >= 100:
		return RatingVeryGood
	case pct >= 50:
		return RatingGood
	case pct >= 20:
		return RatingFair
	default:
		return RatingPoor
	}
}

// Verdict is the overall financial judgement of the realistic scenario.
// Score feeds the composite evaluation as the revenue-side score.
type Verdict struct {
	Label          string `json:"verdict"`
	Confidence     string `json:"confidence"`
	Recommendation string `json:"recommendation"`
	Score          int    `json:"score"`
}

// noBreakEvenMonths stands in for an unreachable break-even when judging.
const noBreakEvenMonths = 999

// Judge applies the verdict rules to a scenario result, strongest first.
func Judge(r ScenarioResult) Verdict {
	roi := r.ROI.Percentage
	months := float64(noBreakEvenMonths)
	if r.BreakEven.Achievable {
		months = r.BreakEven.Months
	}
	profit := r.MonthlyProfit

	switch {
	case roi >= 100 && months <= 12 && profit > 1_000_000:
		return Verdict{Label: "highly profitable", Confidence: "high", Recommendation: "launch immediately", Score: 90}
	case roi >= 50 && months <= 18 && profit > 500_000:
		return Verdict{Label: "profitable", Confidence: "medium", Recommendation: "launch after a small pilot", Score: 70}
	case roi >= 20 && months <= 24:
		return Verdict{Label: "marginal", Confidence: "low", Recommendation: "rework pricing and costs before launch", Score: 50}
	default:
		return Verdict{Label: "unprofitable", Confidence: "very low", Recommendation: "revisit the business model", Score: 30}
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
