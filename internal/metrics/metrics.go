// Package metrics exposes Prometheus instruments for the discovery pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes used as the "outcome" label.
const (
	OutcomeRejected          = "rejected"
	OutcomeFurtherValidation = "further_validation"
	OutcomePromoted          = "promoted"
	OutcomeFailed            = "failed"
)

// Recorder records pipeline metrics.
type Recorder struct {
	evaluations   *prometheus.CounterVec
	totalScore    prometheus.Histogram
	duration      prometheus.Histogram
	commitRetries *prometheus.CounterVec
	lastRun       prometheus.Gauge
	runCandidates *prometheus.CounterVec
}

// New registers the recorder's instruments with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idea_scout_evaluations_total",
				Help: "Evaluated candidates by routing outcome",
			},
			[]string{"outcome"},
		),
		totalScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idea_scout_total_score",
			Help:    "Distribution of composite total scores",
			Buckets: []float64{50, 60, 70, 80, 90, 95},
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idea_scout_evaluation_duration_seconds",
			Help:    "Duration of one evaluate-and-route step",
			Buckets: prometheus.DefBuckets,
		}),
		commitRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idea_scout_commit_retries_total",
				Help: "Persistence retries by operation",
			},
			[]string{"operation"},
		),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "idea_scout_last_run_timestamp_seconds",
			Help: "Unix time of the last completed discovery run",
		}),
		runCandidates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idea_scout_run_candidates_total",
				Help: "Candidates seen by discovery runs by stage",
			},
			[]string{"stage"},
		),
	}
}

// RecordEvaluation records one routed candidate.
func (r *Recorder) RecordEvaluation(outcome string, total float64, d time.Duration) {
	r.evaluations.WithLabelValues(outcome).Inc()
	if outcome != OutcomeFailed {
		r.totalScore.Observe(total)
	}
	r.duration.Observe(d.Seconds())
}

// RecordCommitRetry counts one persistence retry.
func (r *Recorder) RecordCommitRetry(op string) {
	r.commitRetries.WithLabelValues(op).Inc()
}

// RecordRun marks a completed run and counts generated and skipped
// candidates.
func (r *Recorder) RecordRun(at time.Time, generated, duplicates int) {
	r.lastRun.Set(float64(at.Unix()))
	r.runCandidates.WithLabelValues("generated").Add(float64(generated))
	r.runCandidates.WithLabelValues("duplicate").Add(float64(duplicates))
}
