package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/idea-scout/internal/evaluate"
	"github.com/sells-group/idea-scout/internal/metrics"
	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/resilience"
	"github.com/sells-group/idea-scout/internal/store"
)

// Metrics observes run and evaluation outcomes. *metrics.Recorder
// satisfies it.
type Metrics interface {
	RecordEvaluation(outcome string, total float64, d time.Duration)
	RecordRun(at time.Time, generated, duplicates int)
}

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(string, float64, time.Duration) {}
func (nopMetrics) RecordRun(time.Time, int, int)                   {}

// Orchestrator runs discovery batches. Persistence retries are the store's
// concern; wrap it in a store.Gateway for retry with reconnect.
type Orchestrator struct {
	store     store.Store
	evaluator *evaluate.Evaluator
	source    Source
	metrics   Metrics
	cfg       Config
	limiter   *rate.Limiter
	locks     *nameLocks
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the wall clock used for batch ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(st store.Store, ev *evaluate.Evaluator, src Source, cfg Config, opts ...Option) (*Orchestrator, error) {
	if st == nil || ev == nil || src == nil {
		return nil, eris.New("discovery: store, evaluator and source are required")
	}
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.PaceInterval > 0 {
		limit = rate.Every(cfg.PaceInterval)
	}

	o := &Orchestrator{
		store:     st,
		evaluator: ev,
		source:    src,
		metrics:   nopMetrics{},
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		locks:     newNameLocks(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the effective run configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// RunOnce generates, deduplicates, evaluates, records and routes one batch.
// Per-candidate failures are reported in the result and never abort the
// batch. An error is returned only when ctx is done before any candidate
// was generated.
func (o *Orchestrator) RunOnce(ctx context.Context) (*RunResult, error) {
	start := o.now()
	batch := start.Format(BatchLayout)
	log := zap.L().With(zap.String("component", "discovery"), zap.String("batch", batch))

	res := &RunResult{BatchID: batch, StartedAt: start}

	candidates, err := o.source.Generate(ctx, o.cfg.IdeasPerRun)
	if err != nil {
		if ctx.Err() != nil && len(candidates) == 0 {
			return nil, eris.Wrap(err, "discovery: generate candidates")
		}
		res.GenerationErrors = countJoined(err)
		log.Warn("candidate generation partially failed", zap.Int("usable", len(candidates)), zap.Error(err))
	}
	res.Generated = len(candidates)

	seen := nameSet{}
	recent, err := o.store.RecentNames(ctx, store.NameFilter{
		Since:        start.AddDate(0, 0, -o.cfg.LookbackDays),
		HistoryLimit: o.cfg.HistoryLimit,
		PlanLimit:    o.cfg.PlanLimit,
	})
	if err != nil {
		log.Warn("recent name lookup failed, deduplicating within the run only", zap.Error(err))
	}
	for name := range recent {
		seen.add(name)
	}

	var queue []model.Candidate
	for _, c := range candidates {
		claimed, ok := claimName(c, seen)
		if !ok {
			res.Duplicates++
			log.Debug("dropping duplicate candidate", zap.String("name", c.Name))
			continue
		}
		if claimed.Variant != "" {
			log.Debug("renamed duplicate candidate", zap.String("from", c.Name), zap.String("to", claimed.Name))
		}
		if claimed.Keyword == "" {
			claimed.Keyword = Keyword(claimed.Name)
		}
		queue = append(queue, claimed)
	}

	log.Info("evaluating candidates",
		zap.Int("generated", res.Generated),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("queued", len(queue)),
	)

	results := make([]Result, len(queue))
	done := make([]bool, len(queue))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for i, c := range queue {
		if ctx.Err() != nil {
			break
		}
		if err := o.limiter.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			results[i] = o.process(ctx, c, batch)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		if !done[i] {
			continue
		}
		res.Results = append(res.Results, r)
		if r.Stage != StageEvaluate {
			res.Analyzed++
		}
		switch {
		case r.Failed():
			res.Failed++
		case r.Route == model.RoutePromoted:
			res.Promoted++
		case r.Route == model.RouteRejected:
			res.Rejected++
		}
	}

	res.Duration = o.now().Sub(start)
	o.metrics.RecordRun(o.now(), res.Generated, res.Duplicates)

	log.Info("discovery run complete",
		zap.Int("analyzed", res.Analyzed),
		zap.Int("promoted", res.Promoted),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// process evaluates, records and routes one candidate.
func (o *Orchestrator) process(ctx context.Context, c model.Candidate, batch string) Result {
	log := zap.L().With(zap.String("component", "discovery"), zap.String("batch", batch), zap.String("name", c.Name))
	start := o.now()
	th := o.evaluator.Thresholds()

	r := Result{Stage: StageEvaluate, Outcome: evaluate.Outcome{Candidate: c}}
	fail := func(stage Stage, err error) Result {
		r.Stage = stage
		r.Err = err
		r.ErrorClass = classify(err)
		o.metrics.RecordEvaluation(metrics.OutcomeFailed, r.Outcome.TotalScore, o.now().Sub(start))
		log.Error("candidate failed", zap.String("stage", string(stage)), zap.Error(err))
		return r
	}

	out, err := o.evaluator.Evaluate(c)
	if err != nil {
		return fail(StageEvaluate, err)
	}
	r.Outcome = out
	r.Route = th.Route(out.TotalScore)

	analysis, err := out.AnalysisJSON()
	if err != nil {
		return fail(StageEvaluate, err)
	}

	now := o.now().UTC()
	rec := &model.EvaluationRecord{
		Name:               out.Candidate.Name,
		Category:           out.Candidate.Category,
		Keyword:            out.Candidate.Keyword,
		BusinessType:       out.Candidate.BusinessType,
		Candidate:          out.Candidate,
		MarketScore:        out.MarketScore,
		RevenueScore:       out.RevenueScore,
		TotalScore:         out.TotalScore,
		Recommendation:     out.Recommendation,
		DiscoveryBatch:     batch,
		SavedToPromoted:    r.Route == model.RoutePromoted,
		AnalysisDurationMs: out.Duration.Milliseconds(),
		Analysis:           analysis,
		CreatedAt:          now,
	}
	if err := o.store.InsertEvaluation(ctx, rec); err != nil {
		return fail(StageRecord, eris.Wrap(err, "discovery: record evaluation"))
	}
	r.EvaluationID = rec.ID
	r.Stage = StageRoute

	outcome := metrics.OutcomeRejected
	switch r.Route {
	case model.RouteRejected:
		r.Reason = failureReason(out, th.RejectBelow)
		r.Suggestions = suggestions(out, r.Reason, th.RejectBelow)
		rc := &model.RejectedCandidate{
			EvaluationID:   rec.ID,
			Name:           rec.Name,
			Category:       rec.Category,
			Keyword:        rec.Keyword,
			TotalScore:     out.TotalScore,
			MarketScore:    out.MarketScore,
			RevenueScore:   out.RevenueScore,
			FailureReason:  r.Reason,
			Suggestions:    r.Suggestions,
			DiscoveryBatch: batch,
			CreatedAt:      now,
		}
		if err := o.store.InsertRejected(ctx, rc); err != nil {
			return fail(StageRoute, eris.Wrap(err, "discovery: insert rejected candidate"))
		}
	case model.RoutePromoted:
		plan, err := buildPlan(out, th, batch, analysis, now)
		if err != nil {
			return fail(StageRoute, err)
		}
		r.Status = plan.Status
		created, err := o.upsertPlan(ctx, plan)
		if err != nil {
			if uerr := o.store.SetSavedToPromoted(ctx, rec.ID, false); uerr != nil {
				log.Warn("failed to clear saved_to_promoted", zap.Error(uerr))
			}
			return fail(StageRoute, eris.Wrap(err, "discovery: upsert promoted plan"))
		}
		r.PlanCreated = created
		outcome = metrics.OutcomePromoted
		if plan.Status == model.PlanFurtherValidation {
			outcome = metrics.OutcomeFurtherValidation
		}
	}

	r.Stage = StageDone
	o.metrics.RecordEvaluation(outcome, out.TotalScore, o.now().Sub(start))
	log.Info("candidate routed",
		zap.String("route", string(r.Route)),
		zap.Float64("total_score", out.TotalScore),
		zap.Int("market_score", out.MarketScore),
		zap.Int("revenue_score", out.RevenueScore),
	)
	return r
}

// upsertPlan serialises upserts per name so concurrent evaluations of the
// same name cannot both insert.
func (o *Orchestrator) upsertPlan(ctx context.Context, plan *model.PromotedPlan) (bool, error) {
	unlock := o.locks.lock(plan.Name)
	defer unlock()
	return o.store.UpsertPromotedPlan(ctx, plan)
}

// nameLocks is a set of per-name mutexes.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*nameLock)}
}

// lock acquires the mutex for name and returns its release func. Entries
// are dropped once no goroutine holds or waits on them.
func (l *nameLocks) lock(name string) func() {
	l.mu.Lock()
	nl, ok := l.locks[name]
	if !ok {
		nl = &nameLock{}
		l.locks[name] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()
	return func() {
		nl.mu.Unlock()
		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}

// classify labels persistence errors the store would retry as transient,
// so a pg connection failure that outlived its retries is not reported as
// permanent.
func classify(err error) resilience.ErrorClass {
	if store.IsRetryable(err) {
		return resilience.ClassTransient
	}
	return resilience.ClassifyError(err)
}

// countJoined counts the errors in an errors.Join result.
func countJoined(err error) int {
	if err == nil {
		return 0
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return len(j.Unwrap())
	}
	return 1
}
