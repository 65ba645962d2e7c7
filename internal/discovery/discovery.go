// Package discovery runs batches of business-idea candidates through the
// evaluator and routes each outcome to the rejected or promoted store.
package discovery

import (
	"time"

	"github.com/sells-group/idea-scout/internal/evaluate"
	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/resilience"
)

// BatchLayout formats the discovery batch id from the run start time.
const BatchLayout = "2006-01-02-15"

// Config tunes a discovery run.
type Config struct {
	IdeasPerRun  int           // candidates requested from the source
	LookbackDays int           // history window for name dedup
	HistoryLimit int           // max history rows scanned for dedup
	PlanLimit    int           // max recent promoted plans scanned for dedup
	PaceInterval time.Duration // min gap between evaluations, 0 disables pacing
	Concurrency  int           // parallel evaluations, 1 is strictly sequential
}

// DefaultConfig returns the standard run settings.
func DefaultConfig() Config {
	return Config{
		IdeasPerRun:  3,
		LookbackDays: 7,
		HistoryLimit: 500,
		PlanLimit:    200,
		PaceInterval: 2 * time.Second,
		Concurrency:  1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IdeasPerRun <= 0 {
		c.IdeasPerRun = d.IdeasPerRun
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = d.LookbackDays
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.PlanLimit <= 0 {
		c.PlanLimit = d.PlanLimit
	}
	if c.PaceInterval < 0 {
		c.PaceInterval = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// Stage is the step of the evaluate-and-route pipeline a result reached.
type Stage string

const (
	StageEvaluate Stage = "evaluate"
	StageRecord   Stage = "record"
	StageRoute    Stage = "route"
	StageDone     Stage = "done"
)

// Result is the per-candidate outcome of a run. Err is set when the
// candidate stopped before StageDone; the run itself still completes.
type Result struct {
	Outcome      evaluate.Outcome      `json:"outcome"`
	EvaluationID string                `json:"evaluation_id,omitempty"`
	Route        model.Route           `json:"route,omitempty"`
	PlanCreated  bool                  `json:"plan_created,omitempty"`
	Stage        Stage                 `json:"stage"`
	Err          error                 `json:"-"`
	ErrorClass   resilience.ErrorClass `json:"error_class,omitempty"`
	Reason       model.FailureReason   `json:"failure_reason,omitempty"`
	Suggestions  []model.Suggestion    `json:"suggestions,omitempty"`
	Status       model.PlanStatus      `json:"plan_status,omitempty"`
}

// Failed reports whether the candidate did not complete routing.
func (r Result) Failed() bool {
	return r.Err != nil
}

// RunResult summarises one discovery run.
type RunResult struct {
	BatchID          string        `json:"batch_id"`
	Generated        int           `json:"generated"`
	Duplicates       int           `json:"duplicates"`
	Analyzed         int           `json:"analyzed"`
	Promoted         int           `json:"promoted"`
	Rejected         int           `json:"rejected"`
	Failed           int           `json:"failed"`
	GenerationErrors int           `json:"generation_errors"`
	Results          []Result      `json:"results"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// PromotedResults returns the results routed to the promoted store.
func (r *RunResult) PromotedResults() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Route == model.RoutePromoted && !res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// FailedResults returns the results that did not complete routing.
func (r *RunResult) FailedResults() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}
