package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/notify"
)

// Aggregator builds post-run aggregates. *aggregate.Service satisfies it.
type Aggregator interface {
	Snapshot(ctx context.Context, window model.WindowType) (*model.Snapshot, error)
	GenerateInsights(ctx context.Context) ([]model.Insight, error)
}

// RunnerConfig tunes the side effects that follow a run.
type RunnerConfig struct {
	HighScoreThreshold float64 // promoted totals at or above this get their own message
	MaxListed          int     // promoted names listed in the run summary
}

// Runner wraps an Orchestrator with the best-effort work that follows each
// run: notifications, an hourly snapshot and insight generation. None of it
// can fail the run.
type Runner struct {
	orch *Orchestrator
	agg  Aggregator
	sink notify.Sink
	cfg  RunnerConfig
	now  func() time.Time
}

// NewRunner creates a Runner. A nil aggregator skips post-run aggregation
// and a nil sink disables notifications.
func NewRunner(orch *Orchestrator, agg Aggregator, sink notify.Sink, cfg RunnerConfig) *Runner {
	if sink == nil {
		sink = notify.Noop{}
	}
	if cfg.HighScoreThreshold <= 0 {
		cfg.HighScoreThreshold = 85
	}
	if cfg.MaxListed <= 0 {
		cfg.MaxListed = 5
	}
	return &Runner{orch: orch, agg: agg, sink: sink, cfg: cfg, now: time.Now}
}

// Run executes one discovery run followed by its side effects.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	res, err := r.orch.RunOnce(ctx)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "runner"), zap.String("batch", res.BatchID))

	for _, msg := range r.messages(res) {
		if err := r.sink.Send(ctx, msg); err != nil {
			log.Warn("notification failed", zap.String("kind", msg.Kind), zap.Error(err))
		}
	}

	if r.agg != nil {
		if _, err := r.agg.Snapshot(ctx, model.WindowHourly); err != nil {
			log.Warn("post-run snapshot failed", zap.Error(err))
		}
		insights, err := r.agg.GenerateInsights(ctx)
		if err != nil {
			log.Warn("post-run insight generation failed", zap.Error(err))
		} else if len(insights) > 0 {
			log.Info("insights generated", zap.Int("count", len(insights)))
		}
	}
	return res, nil
}

// Notification kinds.
const (
	KindRunComplete = "run_complete"
	KindHighScore   = "high_score"
	KindRunErrors   = "run_errors"
)

func (r *Runner) messages(res *RunResult) []notify.Message {
	now := r.now()
	promoted := res.PromotedResults()

	summary := notify.Message{
		Kind:   KindRunComplete,
		Level:  notify.LevelSuccess,
		Title:  fmt.Sprintf("Discovery run %s complete", res.BatchID),
		SentAt: now,
		Fields: []notify.Field{
			{Title: "Analyzed", Value: fmt.Sprint(res.Analyzed), Short: true},
			{Title: "Promoted", Value: fmt.Sprint(res.Promoted), Short: true},
			{Title: "Rejected", Value: fmt.Sprint(res.Rejected), Short: true},
			{Title: "Duplicates", Value: fmt.Sprint(res.Duplicates), Short: true},
		},
	}
	if len(promoted) == 0 {
		summary.Level = notify.LevelWarning
		summary.Text = "No candidate cleared the reject threshold."
	} else {
		var lines []string
		for i, p := range promoted {
			if i == r.cfg.MaxListed {
				lines = append(lines, fmt.Sprintf("and %d more", len(promoted)-i))
				break
			}
			lines = append(lines, fmt.Sprintf("%s (%.1f)", p.Outcome.Candidate.Name, p.Outcome.TotalScore))
		}
		summary.Text = strings.Join(lines, "\n")
	}
	msgs := []notify.Message{summary}

	for _, p := range promoted {
		if p.Outcome.TotalScore < r.cfg.HighScoreThreshold {
			continue
		}
		c := p.Outcome.Candidate
		msgs = append(msgs, notify.Message{
			Kind:   KindHighScore,
			Level:  notify.LevelSuccess,
			Title:  fmt.Sprintf("High-scoring idea: %s", c.Name),
			Text:   c.Description,
			SentAt: now,
			Fields: []notify.Field{
				{Title: "Total", Value: fmt.Sprintf("%.1f", p.Outcome.TotalScore), Short: true},
				{Title: "Market", Value: fmt.Sprint(p.Outcome.MarketScore), Short: true},
				{Title: "Revenue", Value: fmt.Sprint(p.Outcome.RevenueScore), Short: true},
				{Title: "Category", Value: c.Category, Short: true},
				{Title: "Status", Value: string(p.Status), Short: true},
			},
		})
	}

	if failed := res.FailedResults(); len(failed) > 0 {
		var lines []string
		for _, f := range failed {
			lines = append(lines, fmt.Sprintf("%s: %s at %s: %v", f.Outcome.Candidate.Name, f.ErrorClass, f.Stage, f.Err))
		}
		msgs = append(msgs, notify.Message{
			Kind:   KindRunErrors,
			Level:  notify.LevelError,
			Title:  fmt.Sprintf("Discovery run %s had %d failed candidates", res.BatchID, len(failed)),
			Text:   strings.Join(lines, "\n"),
			SentAt: now,
		})
	}
	return msgs
}
