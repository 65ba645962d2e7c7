package scoring

import (
	"fmt"

	"github.com/sells-group/idea-scout/internal/model"
)

const (
	competitionVeryLow  = "매우 낮음"
	competitionLow      = "낮음"
	competitionMedium   = "중간"
	competitionHigh     = "높음"
	competitionVeryHigh = "매우 높음"
)

// Competition is the estimated competitive pressure in a domain.
type Competition struct {
	Level           string `json:"level"`
	Bonus           int    `json:"score_bonus"`
	Description     string `json:"description"`
	EntryDifficulty string `json:"entry_difficulty"`
}

// competition estimates the level from the domain lists, then adjusts for
// the ITType: agencies always face high competition, and a SaaS in a
// low-competition niche stays low.
func (e *Engine) competition(domain string, it model.ITType) Competition {
	ct := e.tables.Competition

	level := competitionMedium
	switch {
	case containsFold(ct.HighDomains, domain):
		level = competitionHigh
	case containsFold(ct.LowDomains, domain):
		level = competitionLow
	}

	switch {
	case it == model.ITTypeAgency:
		level = competitionHigh
	case it == model.ITTypeSaaS && containsFold(ct.LowDomains, domain):
		level = competitionLow
	}

	entry := ct.level(level)
	if entry == nil {
		entry = ct.level(competitionMedium)
	}

	difficulty := "어려움"
	switch level {
	case competitionLow, competitionVeryLow:
		difficulty = "쉬움"
	case competitionMedium:
		difficulty = "보통"
	}

	return Competition{
		Level:           entry.Name,
		Bonus:           entry.Bonus,
		Description:     entry.Description,
		EntryDifficulty: difficulty,
	}
}

// MarketSize is a rough addressable market estimate in hundred-million KRW.
type MarketSize struct {
	EstimatedSize       int    `json:"estimated_size_100m_krw"`
	SizeCategory        string `json:"size_category"`
	AddressableMarket   string `json:"addressable_market"`
	TargetPopulation10k int    `json:"target_population_10k"`
}

// EstimateMarketSize scales the domain's size class by the audience
// population. Only exact table keys, compared case-insensitively, are used;
// anything else falls back to the default domain and audience.
func EstimateMarketSize(t *Tables, domain, audience string) MarketSize {
	sizeClass := t.DefaultDomain.MarketSize
	for _, d := range t.Domains {
		if fold(d.Name) == fold(domain) {
			sizeClass = d.MarketSize
			break
		}
	}
	population := t.DefaultAudience.Population
	for _, a := range t.Audiences {
		if fold(a.Name) == fold(audience) {
			population = a.Population
			break
		}
	}

	base, ok := t.MarketSizeMultipliers[sizeClass]
	if !ok {
		base = t.MarketSizeMultipliers[t.DefaultDomain.MarketSize]
	}
	size := int(float64(base) * float64(population) / 1000)

	return MarketSize{
		EstimatedSize:       size,
		SizeCategory:        sizeClass,
		AddressableMarket:   fmt.Sprintf("about %d x 100M KRW", size),
		TargetPopulation10k: population,
	}
}

// MarketRecommendation is the qualitative reading of a market score.
type MarketRecommendation struct {
	Verdict        string   `json:"verdict"`
	Action         string   `json:"action"`
	Priority       string   `json:"priority"`
	Confidence     string   `json:"confidence"`
	SuccessFactors []string `json:"key_success_factors"`
}

// Recommend maps a market score to a verdict tier and derives the key
// success factors from the domain and competition.
func Recommend(score int, domain DomainEntry, comp Competition) MarketRecommendation {
	var r MarketRecommendation
	switch {
	case score >= 85:
		r.Verdict, r.Action, r.Priority = "very promising", "start MVP development now", "top"
	case score >= 75:
		r.Verdict, r.Action, r.Priority = "promising", "validate the market, then build", "high"
	case score >= 65:
		r.Verdict, r.Action, r.Priority = "average", "more market research needed", "medium"
	case score >= 55:
		r.Verdict, r.Action, r.Priority = "caution", "differentiation strategy required", "low"
	default:
		r.Verdict, r.Action, r.Priority = "not recommended", "explore other ideas", "excluded"
	}

	switch {
	case score >= 75:
		r.Confidence = "high"
	case score >= 60:
		r.Confidence = "medium"
	default:
		r.Confidence = "low"
	}

	var factors []string
	if domain.Trend == "급상승" {
		factors = append(factors, "ride the market growth trend")
	}
	if comp.Level == competitionLow || comp.Level == competitionVeryLow {
		factors = append(factors, "maximise first-mover advantage")
	} else {
		factors = append(factors, "clear differentiation is essential")
	}
	if domain.MarketSize == "대형" {
		factors = append(factors, "target the large addressable market")
	} else {
		factors = append(factors, "focus on a niche market")
	}
	factors = append(factors,
		"ship an MVP quickly and iterate on feedback",
		"secure efficient customer acquisition channels",
	)
	r.SuccessFactors = factors[:4]
	return r
}
