// Package aggregate summarises evaluation history into snapshots, rule-based
// insights and history statistics.
package aggregate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/store"
)

// Config holds the insight rule thresholds.
type Config struct {
	HighScore   float64       // trend rule score floor
	LowScore    float64       // warning rule score ceiling
	MinHigh     int           // high scorers per category for a trend
	MinLow      int           // low scorers per category for a warning
	MinPromoted int           // promoted records for an opportunity
	Window      time.Duration // insight lookback
}

// DefaultConfig returns the standard insight thresholds.
func DefaultConfig() Config {
	return Config{
		HighScore:   85,
		LowScore:    50,
		MinHigh:     3,
		MinLow:      5,
		MinPromoted: 10,
		Window:      24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HighScore <= 0 {
		c.HighScore = d.HighScore
	}
	if c.LowScore <= 0 {
		c.LowScore = d.LowScore
	}
	if c.MinHigh <= 0 {
		c.MinHigh = d.MinHigh
	}
	if c.MinLow <= 0 {
		c.MinLow = d.MinLow
	}
	if c.MinPromoted <= 0 {
		c.MinPromoted = d.MinPromoted
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// Service builds aggregates from the evaluation history in a store.
type Service struct {
	store store.Store
	cfg   Config
	now   func() time.Time
}

// New creates a Service. Zero config values fall back to DefaultConfig.
func New(st store.Store, cfg Config) *Service {
	return &Service{store: st, cfg: cfg.withDefaults(), now: time.Now}
}

// ListInsights returns insights with the given status, newest first. An
// empty status lists all of them.
func (s *Service) ListInsights(ctx context.Context, status model.InsightStatus, limit int) ([]model.Insight, error) {
	if status != "" && !status.Valid() {
		return nil, eris.Errorf("aggregate: unknown insight status %q", status)
	}
	return s.store.ListInsights(ctx, store.InsightFilter{Status: status, Limit: limit})
}
