// Package store persists evaluation history, routing destinations,
// aggregates and scheduler state.
package store

import (
	"context"
	"time"

	"github.com/sells-group/idea-scout/internal/model"
)

// NameFilter bounds the recent-name lookup used for deduplication.
type NameFilter struct {
	Since        time.Time // evaluation history lookback start
	HistoryLimit int       // max history rows scanned
	PlanLimit    int       // max most recent promoted plans scanned
}

// InsightFilter specifies criteria for listing insights.
type InsightFilter struct {
	Status model.InsightStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// Store defines the persistence interface for the evaluation pipeline.
type Store interface {
	// Evaluation history (append-only)
	InsertEvaluation(ctx context.Context, rec *model.EvaluationRecord) error
	ListEvaluationsSince(ctx context.Context, since time.Time) ([]model.EvaluationRecord, error)
	RecentNames(ctx context.Context, filter NameFilter) (map[string]struct{}, error)
	// SetSavedToPromoted corrects the flag on a recorded evaluation when the
	// promoted plan could not be written.
	SetSavedToPromoted(ctx context.Context, id string, saved bool) error

	// Rejected candidates
	InsertRejected(ctx context.Context, rc *model.RejectedCandidate) error
	ListRejectedSince(ctx context.Context, since time.Time) ([]model.RejectedCandidate, error)

	// Promoted plans, unique by name. created reports whether a new row
	// was inserted rather than an existing one updated.
	UpsertPromotedPlan(ctx context.Context, plan *model.PromotedPlan) (created bool, err error)
	GetPromotedPlan(ctx context.Context, name string) (*model.PromotedPlan, error)

	// Aggregates
	InsertSnapshot(ctx context.Context, snap *model.Snapshot) error
	InsertInsight(ctx context.Context, in *model.Insight) error
	ListInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error)

	// Scheduler state. GetLastRun returns the zero time for an unknown job.
	GetLastRun(ctx context.Context, job string) (time.Time, error)
	SetLastRun(ctx context.Context, job string, at time.Time) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Reconnector is implemented by stores that can discard and replace their
// connections after a failure.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

const defaultInsightLimit = 100
