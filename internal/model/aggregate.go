package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// WindowType selects the lookback window of a snapshot.
type WindowType string

const (
	WindowHourly WindowType = "hourly"
	WindowDaily  WindowType = "daily"
	WindowWeekly WindowType = "weekly"
)

// Duration returns the lookback length of the window.
func (w WindowType) Duration() (time.Duration, error) {
	switch w {
	case WindowHourly:
		return time.Hour, nil
	case WindowDaily:
		return 24 * time.Hour, nil
	case WindowWeekly:
		return 7 * 24 * time.Hour, nil
	}
	return 0, eris.Errorf("model: unknown window type %q", w)
}

// ScoreBand is one bucket of the snapshot score histogram.
type ScoreBand string

const (
	Band0to60   ScoreBand = "0-60"
	Band60to70  ScoreBand = "60-70"
	Band70to80  ScoreBand = "70-80"
	Band80to90  ScoreBand = "80-90"
	Band90to100 ScoreBand = "90-100"
)

// ScoreBands lists the histogram bands in ascending order.
var ScoreBands = []ScoreBand{Band0to60, Band60to70, Band70to80, Band80to90, Band90to100}

// BandFor returns the band a total score falls into.
func BandFor(score float64) ScoreBand {
	switch {
	case score < 60:
		return Band0to60
	case score < 70:
		return Band60to70
	case score < 80:
		return Band70to80
	case score < 90:
		return Band80to90
	default:
		return Band90to100
	}
}

// TopEntry is one row of a snapshot's top-by-score list.
type TopEntry struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Score        float64 `json:"score"`
	MarketScore  int     `json:"market_score"`
	RevenueScore int     `json:"revenue_score"`
}

// KeywordCount is a keyword and how often it appeared in the window.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// CategoryCount is a category and how often it appeared in the window.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Snapshot aggregates evaluation history over a window.
type Snapshot struct {
	ID                   string            `json:"id"`
	WindowType           WindowType        `json:"window_type"`
	WindowStart          time.Time         `json:"window_start"`
	TotalAnalyzed        int               `json:"total_analyzed"`
	TotalSaved           int               `json:"total_saved"`
	AvgTotalScore        float64           `json:"avg_total_score"`
	AvgMarketScore       float64           `json:"avg_market_score"`
	AvgRevenueScore      float64           `json:"avg_revenue_score"`
	CategoryDistribution map[string]int    `json:"category_distribution"`
	ScoreDistribution    map[ScoreBand]int `json:"score_distribution"`
	TopCandidates        []TopEntry        `json:"top_candidates"`
	TrendingKeywords     []KeywordCount    `json:"trending_keywords"`
	TrendingCategories   []CategoryCount   `json:"trending_categories"`
	CreatedAt            time.Time         `json:"created_at"`
}

// InsightType classifies an insight.
type InsightType string

const (
	InsightTrend       InsightType = "trend"
	InsightWarning     InsightType = "warning"
	InsightOpportunity InsightType = "opportunity"
)

// ImpactLevel grades the expected impact of an insight.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// InsightStatus is the manual review state of an insight. Only
// InsightNew is ever produced by this module.
type InsightStatus string

const (
	InsightNew       InsightStatus = "new"
	InsightReviewed  InsightStatus = "reviewed"
	InsightActedOn   InsightStatus = "acted_on"
	InsightDismissed InsightStatus = "dismissed"
)

// Valid reports whether s is a known InsightStatus.
func (s InsightStatus) Valid() bool {
	switch s {
	case InsightNew, InsightReviewed, InsightActedOn, InsightDismissed:
		return true
	}
	return false
}

// Insight is a rule-derived observation over recent history.
type Insight struct {
	ID               string         `json:"id"`
	Type             InsightType    `json:"type"`
	Category         string         `json:"category,omitempty"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Evidence         map[string]any `json:"evidence"`
	ConfidenceScore  float64        `json:"confidence_score"`
	ImpactLevel      ImpactLevel    `json:"impact_level"`
	Actionable       bool           `json:"actionable"`
	SuggestedActions []string       `json:"suggested_actions"`
	Status           InsightStatus  `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}
