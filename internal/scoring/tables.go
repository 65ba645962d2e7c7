package scoring

import (
	_ "embed"
	"slices"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/idea-scout/internal/model"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// ITTypeEntry is the base score and best-fit domains of an ITType.
type ITTypeEntry struct {
	Type        model.ITType `yaml:"type"`
	BaseScore   int          `yaml:"base_score"`
	BestDomains []string     `yaml:"best_domains"`
}

// DomainEntry describes one market domain.
type DomainEntry struct {
	Name       string `yaml:"name" json:"name"`
	MarketSize string `yaml:"market_size" json:"market_size"`
	GrowthRate int    `yaml:"growth_rate" json:"growth_rate"`
	Trend      string `yaml:"trend" json:"trend"`
	Bonus      int    `yaml:"bonus" json:"bonus"`
	Category   string `yaml:"category" json:"category,omitempty"`
}

// AudienceEntry describes one target audience. Population is in units of
// ten thousand people.
type AudienceEntry struct {
	Name            string `yaml:"name" json:"name"`
	Population      int    `yaml:"population" json:"population"`
	DigitalAffinity string `yaml:"digital_affinity" json:"digital_affinity"`
	SpendingPower   string `yaml:"spending_power" json:"spending_power"`
	Bonus           int    `yaml:"bonus" json:"bonus"`
}

// DomainSynergy rewards domains touching either side of a pair.
type DomainSynergy struct {
	Pair  [2]string `yaml:"pair"`
	Bonus int       `yaml:"bonus"`
}

// AudienceSynergy rewards an audience and domain combination.
type AudienceSynergy struct {
	Audience string `yaml:"audience"`
	Domain   string `yaml:"domain"`
	Bonus    int    `yaml:"bonus"`
}

// TrendTier is a group of trend keywords sharing one bonus.
type TrendTier struct {
	Name     string   `yaml:"name"`
	Bonus    int      `yaml:"bonus"`
	Keywords []string `yaml:"keywords"`
}

// RevenueModelEntry scores a named revenue model.
type RevenueModelEntry struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Score       int      `yaml:"score"`
	Stability   string   `yaml:"stability"`
	Scalability string   `yaml:"scalability"`
}

// CompetitionLevel maps a qualitative level to a bonus.
type CompetitionLevel struct {
	Name        string `yaml:"name"`
	Bonus       int    `yaml:"bonus"`
	Description string `yaml:"description"`
}

// CompetitionTable holds the levels and the domain heuristics.
type CompetitionTable struct {
	Levels      []CompetitionLevel `yaml:"levels"`
	HighDomains []string           `yaml:"high_domains"`
	LowDomains  []string           `yaml:"low_domains"`
}

// Weights are the coefficients of the raw market score.
type Weights struct {
	Base        float64 `yaml:"base"`
	Domain      float64 `yaml:"domain"`
	Audience    float64 `yaml:"audience"`
	Trend       float64 `yaml:"trend"`
	Revenue     float64 `yaml:"revenue"`
	Competition float64 `yaml:"competition"`
	Synergy     float64 `yaml:"synergy"`
}

// ScoreRange bounds the final market score.
type ScoreRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Tables is the full static knowledge base of the scoring engine.
type Tables struct {
	DefaultBaseScore      int                 `yaml:"default_base_score"`
	ITTypes               []ITTypeEntry       `yaml:"it_types"`
	DefaultDomain         DomainEntry         `yaml:"default_domain"`
	Domains               []DomainEntry       `yaml:"domains"`
	DefaultAudience       AudienceEntry       `yaml:"default_audience"`
	Audiences             []AudienceEntry     `yaml:"audiences"`
	DomainSynergy         []DomainSynergy     `yaml:"domain_synergy"`
	AudienceSynergy       []AudienceSynergy   `yaml:"audience_domain_synergy"`
	BestDomainBonus       int                 `yaml:"best_domain_bonus"`
	SynergyCap            int                 `yaml:"synergy_cap"`
	TrendTiers            []TrendTier         `yaml:"trend_tiers"`
	DefaultRevenueScore   int                 `yaml:"default_revenue_score"`
	RevenueCap            int                 `yaml:"revenue_cap"`
	RevenueModels         []RevenueModelEntry `yaml:"revenue_models"`
	Competition           CompetitionTable    `yaml:"competition"`
	Weights               Weights             `yaml:"weights"`
	ScoreRange            ScoreRange          `yaml:"score_range"`
	Jitter                int                 `yaml:"jitter"`
	MarketSizeMultipliers map[string]int      `yaml:"market_size_multipliers"`
}

// LoadTables parses and validates a YAML knowledge base.
func LoadTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "scoring: parse tables")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

var defaultTables = sync.OnceValues(func() (*Tables, error) {
	return LoadTables(defaultTablesYAML)
})

// DefaultTables returns the embedded knowledge base. The result is shared
// and must not be mutated.
func DefaultTables() (*Tables, error) {
	return defaultTables()
}

// Validate checks internal consistency of the tables.
func (t *Tables) Validate() error {
	var errs []string
	if len(t.ITTypes) == 0 {
		errs = append(errs, "it_types is empty")
	}
	if len(t.Domains) == 0 {
		errs = append(errs, "domains is empty")
	}
	if len(t.TrendTiers) == 0 {
		errs = append(errs, "trend_tiers is empty")
	}
	if t.ScoreRange.Min >= t.ScoreRange.Max {
		errs = append(errs, "score_range min must be below max")
	}
	if t.Jitter < 0 {
		errs = append(errs, "jitter must not be negative")
	}
	if t.Competition.level(competitionMedium) == nil {
		errs = append(errs, "competition level "+competitionMedium+" is required")
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: invalid tables: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (t *Tables) itType(it model.ITType) *ITTypeEntry {
	for i := range t.ITTypes {
		if t.ITTypes[i].Type == it {
			return &t.ITTypes[i]
		}
	}
	return nil
}

// domain resolves an exact key first, then the first key that contains or
// is contained in the query. The bool reports whether any entry matched.
func (t *Tables) domain(name string) (DomainEntry, bool) {
	key := fold(name)
	for _, d := range t.Domains {
		if fold(d.Name) == key {
			return d, true
		}
	}
	if key != "" {
		for _, d := range t.Domains {
			if overlaps(key, fold(d.Name)) {
				return d, true
			}
		}
	}
	d := t.DefaultDomain
	d.Name = name
	return d, false
}

func (t *Tables) audience(name string) (AudienceEntry, bool) {
	key := fold(name)
	for _, a := range t.Audiences {
		if fold(a.Name) == key {
			return a, true
		}
	}
	if key != "" {
		for _, a := range t.Audiences {
			if overlaps(key, fold(a.Name)) {
				return a, true
			}
		}
	}
	a := t.DefaultAudience
	a.Name = name
	return a, false
}

func (c CompetitionTable) level(name string) *CompetitionLevel {
	for i := range c.Levels {
		if c.Levels[i].Name == name {
			return &c.Levels[i]
		}
	}
	return nil
}

// fold normalises text for case-insensitive matching of mixed Hangul and
// Latin keywords. Decomposed Hangul input is recomposed first.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// overlaps reports whether either folded key contains the other.
func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// containsFold reports whether list holds name, ignoring case.
func containsFold(list []string, name string) bool {
	key := fold(name)
	return slices.ContainsFunc(list, func(s string) bool { return fold(s) == key })
}
