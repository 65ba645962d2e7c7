// Package scoring turns a candidate into a market score using static
// knowledge tables.
package scoring

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sells-group/idea-scout/internal/model"
)

// Rand is the jitter source. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Breakdown is the per-component explanation of a market score.
type Breakdown struct {
	Base        int `json:"base_score"`
	Domain      int `json:"domain_bonus"`
	Audience    int `json:"target_bonus"`
	Trend       int `json:"trend_bonus"`
	Revenue     int `json:"revenue_bonus"`
	Competition int `json:"competition_bonus"`
	Synergy     int `json:"synergy_bonus"`
}

// Weighted returns the raw, unclamped score the breakdown produces.
func (b Breakdown) Weighted(w Weights) float64 {
	return float64(b.Base)*w.Base +
		float64(b.Domain)*w.Domain +
		float64(b.Audience)*w.Audience +
		float64(b.Trend)*w.Trend +
		float64(b.Revenue)*w.Revenue +
		float64(b.Competition)*w.Competition +
		float64(b.Synergy)*w.Synergy
}

// RevenueModelMatch is one declared revenue model and the score it earned.
type RevenueModelMatch struct {
	Model       string `json:"model"`
	MatchedAs   string `json:"matched_as"`
	Score       int    `json:"score"`
	Stability   string `json:"stability"`
	Scalability string `json:"scalability"`
}

// Analysis is the full, explainable output of Engine.Score.
type Analysis struct {
	MarketScore        int                  `json:"market_score"`
	Raw                float64              `json:"raw_score"`
	Jitter             int                  `json:"jitter"`
	Breakdown          Breakdown            `json:"score_breakdown"`
	Domain             DomainEntry          `json:"domain"`
	DomainMatched      bool                 `json:"domain_matched"`
	Audience           AudienceEntry        `json:"target_audience"`
	AudienceMatched    bool                 `json:"target_matched"`
	Competition        Competition          `json:"competition"`
	RevenueModels      []RevenueModelMatch  `json:"revenue_models"`
	RecurringPotential bool                 `json:"recurring_potential"`
	TrendKeywords      []string             `json:"trend_keywords_found"`
	MarketSize         MarketSize           `json:"market_size"`
	Recommendation     MarketRecommendation `json:"recommendation"`
	Explanation        []string             `json:"explanation"`
}

// Engine scores candidates. It is safe for concurrent use.
type Engine struct {
	tables *Tables

	mu  sync.Mutex
	rng Rand
}

// NewEngine creates an Engine over tables. A nil rng disables jitter, which
// makes Score a pure function of the candidate.
func NewEngine(tables *Tables, rng Rand) *Engine {
	return &Engine{tables: tables, rng: rng}
}

// Tables returns the knowledge base the engine scores against.
func (e *Engine) Tables() *Tables {
	return e.tables
}

// Score computes the market score of c. The score is always within the
// tables' score range.
func (e *Engine) Score(c model.Candidate) Analysis {
	t := e.tables

	var a Analysis
	a.Breakdown.Base = e.baseScore(c.ITType)

	a.Domain, a.DomainMatched = t.domain(c.Domain)
	a.Breakdown.Domain = a.Domain.Bonus

	a.Audience, a.AudienceMatched = t.audience(c.TargetAudience)
	a.Breakdown.Audience = a.Audience.Bonus

	a.Breakdown.Trend = e.trendBonus(c.Name, c.Description)
	a.TrendKeywords = e.trendKeywords(c.Name, c.Description)

	a.RevenueModels, a.Breakdown.Revenue = e.revenueBonus(c.RevenueModels)
	for _, m := range a.RevenueModels {
		if m.Stability == "높음" || m.Stability == "매우 높음" {
			a.RecurringPotential = true
		}
	}

	a.Competition = e.competition(c.Domain, c.ITType)
	a.Breakdown.Competition = a.Competition.Bonus

	a.Breakdown.Synergy = e.synergyBonus(c.Domain, c.TargetAudience, c.ITType)

	a.Raw = a.Breakdown.Weighted(t.Weights)
	score := clamp(int(a.Raw), t.ScoreRange.Min, t.ScoreRange.Max)
	a.Jitter = e.jitter()
	a.MarketScore = clamp(score+a.Jitter, t.ScoreRange.Min, t.ScoreRange.Max)

	a.MarketSize = EstimateMarketSize(t, c.Domain, c.TargetAudience)
	a.Recommendation = Recommend(a.MarketScore, a.Domain, a.Competition)
	a.Explanation = explain(c, a)
	return a
}

func (e *Engine) baseScore(it model.ITType) int {
	if entry := e.tables.itType(it); entry != nil {
		return entry.BaseScore
	}
	return e.tables.DefaultBaseScore
}

// trendBonus awards each tier at most once, however many of its keywords
// appear in the text.
func (e *Engine) trendBonus(name, description string) int {
	text := fold(name + " " + description)
	bonus := 0
	for _, tier := range e.tables.TrendTiers {
		for _, kw := range tier.Keywords {
			if strings.Contains(text, fold(kw)) {
				bonus += tier.Bonus
				break
			}
		}
	}
	return bonus
}

func (e *Engine) trendKeywords(name, description string) []string {
	text := fold(name + " " + description)
	var found []string
	for _, tier := range e.tables.TrendTiers {
		for _, kw := range tier.Keywords {
			if strings.Contains(text, fold(kw)) {
				found = append(found, fmt.Sprintf("%s (%s)", kw, tier.Name))
			}
		}
	}
	return found
}

// revenueBonus sums the score of each declared model, matching exact names
// and aliases before falling back to substring matches. With no match at
// all the default score applies.
func (e *Engine) revenueBonus(models []string) ([]RevenueModelMatch, int) {
	t := e.tables
	var matches []RevenueModelMatch
	total := 0
	for _, m := range models {
		entry := lookupRevenueModel(t.RevenueModels, m)
		if entry == nil {
			continue
		}
		total += entry.Score
		matches = append(matches, RevenueModelMatch{
			Model:       m,
			MatchedAs:   entry.Name,
			Score:       entry.Score,
			Stability:   entry.Stability,
			Scalability: entry.Scalability,
		})
	}
	if len(matches) == 0 {
		return []RevenueModelMatch{{
			Model:       "undecided",
			MatchedAs:   "undecided",
			Score:       t.DefaultRevenueScore,
			Stability:   "중간",
			Scalability: "중간",
		}}, min(t.DefaultRevenueScore, t.RevenueCap)
	}
	return matches, min(total, t.RevenueCap)
}

func lookupRevenueModel(entries []RevenueModelEntry, name string) *RevenueModelEntry {
	q := fold(strings.TrimSpace(name))
	if q == "" {
		return nil
	}
	for i := range entries {
		if fold(entries[i].Name) == q {
			return &entries[i]
		}
		for _, alias := range entries[i].Aliases {
			if fold(alias) == q {
				return &entries[i]
			}
		}
	}
	for i := range entries {
		key := fold(entries[i].Name)
		if strings.Contains(q, key) || strings.Contains(key, q) {
			return &entries[i]
		}
		for _, alias := range entries[i].Aliases {
			a := fold(alias)
			if strings.Contains(q, a) || strings.Contains(a, q) {
				return &entries[i]
			}
		}
	}
	return nil
}

// synergyBonus combines domain pairs (half bonus when the domain touches
// either side), audience and domain pairs (full bonus), and a one-off bonus
// when the domain is among the ITType's best domains. Capped by the tables.
func (e *Engine) synergyBonus(domain, audience string, it model.ITType) int {
	t := e.tables
	d := fold(domain)
	aud := fold(audience)
	total := 0

	if d != "" {
		for _, s := range t.DomainSynergy {
			if strings.Contains(d, fold(s.Pair[0])) || strings.Contains(d, fold(s.Pair[1])) {
				total += s.Bonus / 2
			}
		}
	}

	if d != "" && aud != "" {
		for _, s := range t.AudienceSynergy {
			if strings.Contains(aud, fold(s.Audience)) && strings.Contains(d, fold(s.Domain)) {
				total += s.Bonus
			}
		}
	}

	if entry := t.itType(it); entry != nil && d != "" {
		for _, best := range entry.BestDomains {
			if strings.Contains(d, fold(best)) {
				total += t.BestDomainBonus
				break
			}
		}
	}

	return min(total, t.SynergyCap)
}

func (e *Engine) jitter() int {
	j := e.tables.Jitter
	if e.rng == nil || j == 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(2*j+1) - j
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func explain(c model.Candidate, a Analysis) []string {
	b := a.Breakdown
	lines := []string{
		fmt.Sprintf("base %d for it_type %q", b.Base, c.ITType),
		fmt.Sprintf("domain %q bonus %d (%s, %s)", a.Domain.Name, b.Domain, a.Domain.MarketSize, a.Domain.Trend),
		fmt.Sprintf("audience %q bonus %d", a.Audience.Name, b.Audience),
		fmt.Sprintf("trend bonus %d", b.Trend),
		fmt.Sprintf("revenue model bonus %d", b.Revenue),
		fmt.Sprintf("competition %s bonus %d", a.Competition.Level, b.Competition),
		fmt.Sprintf("synergy bonus %d", b.Synergy),
		fmt.Sprintf("raw %.2f, jitter %+d, final %d", a.Raw, a.Jitter, a.MarketScore),
	}
	if !a.DomainMatched && c.Domain != "" {
		lines = append(lines, fmt.Sprintf("domain %q not in tables, neutral bonus applied", c.Domain))
	}
	return lines
}
