// Package evaluate combines the market score and the financial simulation
// into one composite score and recommendation tier.
package evaluate

import (
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/finance"
	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/scoring"
)

// Composite weights and bounds of the total score.
const (
	marketWeight  = 0.6
	revenueWeight = 0.4
	minTotal      = 50
	maxTotal      = 95
)

// Thresholds split the total score into routing tiers. A total below
// RejectBelow is rejected, at or above PromoteAtOrAbove it is approved, and
// anything in between is promoted for further validation.
type Thresholds struct {
	RejectBelow      float64 `json:"reject_below"`
	PromoteAtOrAbove float64 `json:"promote_at_or_above"`
}

// DefaultThresholds returns the standard 60/70 split.
func DefaultThresholds() Thresholds {
	return Thresholds{RejectBelow: 60, PromoteAtOrAbove: 70}
}

// Validate checks 0 <= RejectBelow <= PromoteAtOrAbove <= 100.
func (t Thresholds) Validate() error {
	if t.RejectBelow < 0 || t.PromoteAtOrAbove > 100 || t.RejectBelow > t.PromoteAtOrAbove {
		return eris.Errorf("evaluate: invalid thresholds reject_below=%v promote_at_or_above=%v", t.RejectBelow, t.PromoteAtOrAbove)
	}
	return nil
}

// Tier maps a total score to a recommendation.
func (t Thresholds) Tier(total float64) model.Recommendation {
	switch {
	case total >= t.PromoteAtOrAbove:
		return model.RecommendImmediate
	case total >= t.RejectBelow:
		return model.RecommendFurther
	default:
		return model.RecommendNotRecommended
	}
}

// Route maps a total score to its single destination.
func (t Thresholds) Route(total float64) model.Route {
	if total < t.RejectBelow {
		return model.RouteRejected
	}
	return model.RoutePromoted
}

// Outcome is the result of evaluating one candidate.
type Outcome struct {
	Candidate      model.Candidate         `json:"candidate"`
	Market         scoring.Analysis        `json:"market_analysis"`
	Revenue        finance.RevenueAnalysis `json:"revenue_analysis"`
	MarketScore    int                     `json:"market_score"`
	RevenueScore   int                     `json:"revenue_score"`
	TotalScore     float64                 `json:"total_score"`
	Recommendation model.Recommendation    `json:"recommendation"`
	Duration       time.Duration           `json:"-"`
}

// AnalysisJSON returns the raw analysis payload stored with the evaluation.
func (o Outcome) AnalysisJSON() (json.RawMessage, error) {
	b, err := json.Marshal(struct {
		Market  scoring.Analysis        `json:"market_analysis"`
		Revenue finance.RevenueAnalysis `json:"revenue_analysis"`
	}{o.Market, o.Revenue})
	if err != nil {
		return nil, eris.Wrap(err, "evaluate: marshal analysis")
	}
	return b, nil
}

// Evaluator scores candidates. It holds no per-call state and is safe for
// concurrent use.
type Evaluator struct {
	engine     *scoring.Engine
	simulator  *finance.Simulator
	thresholds Thresholds
	now        func() time.Time
}

// New creates an Evaluator.
func New(engine *scoring.Engine, simulator *finance.Simulator, th Thresholds) (*Evaluator, error) {
	if engine == nil || simulator == nil {
		return nil, eris.New("evaluate: engine and simulator are required")
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{engine: engine, simulator: simulator, thresholds: th, now: time.Now}, nil
}

// Thresholds returns the configured routing thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate scores c. The only error is an invalid candidate.
func (e *Evaluator) Evaluate(c model.Candidate) (Outcome, error) {
	if err := c.Validate(); err != nil {
		return Outcome{}, err
	}
	start := e.now()
	c = c.WithDefaults()

	market := e.engine.Score(c)
	revenue := e.simulator.Simulate(c)

	o := Outcome{
		Candidate:    c,
		Market:       market,
		Revenue:      revenue,
		MarketScore:  market.MarketScore,
		RevenueScore: revenue.Verdict.Score,
	}
	o.TotalScore = TotalScore(o.MarketScore, o.RevenueScore)
	o.Recommendation = e.thresholds.Tier(o.TotalScore)
	o.Duration = e.now().Sub(start)
	return o, nil
}

// TotalScore blends market and revenue scores 60/40, rounded to two
// decimals and clamped to [50,95].
func TotalScore(market, revenue int) float64 {
	total := float64(market)*marketWeight + float64(revenue)*revenueWeight
	total = math.Round(total*100) / 100
	return math.Max(minTotal, math.Min(maxTotal, total))
}
