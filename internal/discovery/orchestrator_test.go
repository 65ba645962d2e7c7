package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scout/internal/evaluate"
	"github.com/sells-group/idea-scout/internal/finance"
	"github.com/sells-group/idea-scout/internal/metrics"
	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/resilience"
	"github.com/sells-group/idea-scout/internal/scoring"
	"github.com/sells-group/idea-scout/internal/store"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// Thresholds that force a route regardless of score (totals are 50..95).
var (
	promoteAll = evaluate.Thresholds{RejectBelow: 0, PromoteAtOrAbove: 0}
	rejectAll  = evaluate.Thresholds{RejectBelow: 100, PromoteAtOrAbove: 100}
	furtherAll = evaluate.Thresholds{RejectBelow: 0, PromoteAtOrAbove: 100}
)

func testCandidate(name string) model.Candidate {
	return model.Candidate{
		Name:             name,
		Category:         "IT/Tech",
		Domain:           "AI",
		TargetAudience:   "직장인",
		Description:      "AI 자동화 도구",
		ITType:           model.ITTypeSaaS,
		BusinessType:     model.BusinessSaaS,
		Scale:            model.ScaleSmall,
		RevenueModel:     model.RevenueSubscription,
		RevenueModels:    []string{"subscription"},
		Pricing:          model.Pricing{Monthly: 29000},
		TargetMarketSize: 10000,
	}
}

func newTestOrchestrator(t *testing.T, st store.Store, src Source, th evaluate.Thresholds, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	tables, err := scoring.DefaultTables()
	require.NoError(t, err)
	ev, err := evaluate.New(scoring.NewEngine(tables, nil), finance.NewSimulator(), th)
	require.NoError(t, err)

	cfg.PaceInterval = 0
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	o, err := New(st, ev, src, cfg, opts...)
	require.NoError(t, err)
	return o
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, nil, Config{})
	assert.Error(t, err)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{PaceInterval: -time.Second}.withDefaults()
	assert.Equal(t, 3, cfg.IdeasPerRun)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.Equal(t, 500, cfg.HistoryLimit)
	assert.Equal(t, 200, cfg.PlanLimit)
	assert.Equal(t, time.Duration(0), cfg.PaceInterval)
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestRunOnce_PromotesAndRecords(t *testing.T) {
	st := newMockStore()
	src := &stubSource{candidates: []model.Candidate{testCandidate("A"), testCandidate("B"), testCandidate("C")}}
	rec := &recordingMetrics{}
	o := newTestOrchestrator(t, st, src, promoteAll, Config{IdeasPerRun: 5}, WithMetrics(rec))

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, src.requested)
	assert.Equal(t, "2026-03-14-09", res.BatchID)
	assert.Equal(t, 3, res.Generated)
	assert.Equal(t, 3, res.Analyzed)
	assert.Equal(t, 3, res.Promoted)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Results, 3)

	evals, err := st.ListEvaluationsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, evals, 3)
	for _, e := range evals {
		assert.Equal(t, "2026-03-14-09", e.DiscoveryBatch)
		assert.True(t, e.SavedToPromoted)
		assert.NotEmpty(t, e.Analysis)
		assert.Equal(t, e.Name, e.Keyword)
	}
	assert.Equal(t, 3, st.PromotedPlanCount())

	plan, err := st.GetPromotedPlan(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, model.PlanApproved, plan.Status)
	assert.Equal(t, "2026-03-14-09", plan.DiscoveryBatch)

	for _, r := range res.Results {
		assert.Equal(t, StageDone, r.Stage)
		assert.True(t, r.PlanCreated)
		assert.NotEmpty(t, r.EvaluationID)
	}
	assert.Equal(t, 3, rec.outcomes[metrics.OutcomePromoted])
	assert.Equal(t, 1, rec.runs)
}

func TestRunOnce_FurtherValidationTier(t *testing.T) {
	st := newMockStore()
	src := &stubSource{candidates: []model.Candidate{testCandidate("A")}}
	rec := &recordingMetrics{}
	o := newTestOrchestrator(t, st, src, furtherAll, Config{}, WithMetrics(rec))

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, model.PlanFurtherValidation, res.Results[0].Status)
	assert.Equal(t, 1, rec.outcomes[metrics.OutcomeFurtherValidation])
}

func TestRunOnce_RejectsWithReasonAndSuggestions(t *testing.T) {
	st := newMockStore()
	src := &stubSource{candidates: []model.Candidate{testCandidate("A"), testCandidate("B")}}
	o := newTestOrchestrator(t, st, src, rejectAll, Config{})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Analyzed)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 0, res.Promoted)
	assert.Equal(t, 0, st.PromotedPlanCount())

	rejected, err := st.ListRejectedSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, rejected, 2)
	for _, rc := range rejected {
		assert.Equal(t, model.FailureBoth, rc.FailureReason)
		require.Len(t, rc.Suggestions, 3)
		assert.Equal(t, "strategy", rc.Suggestions[2].Area)
		assert.NotEmpty(t, rc.EvaluationID)
	}

	evals, err := st.ListEvaluationsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	for _, e := range evals {
		assert.False(t, e.SavedToPromoted)
	}
}

func TestRunOnce_EveryEvaluationRecordedOnce(t *testing.T) {
	st := newMockStore()
	var cands []model.Candidate
	for i := range 6 {
		cands = append(cands, testCandidate(fmt.Sprintf("idea-%d", i)))
	}
	th := evaluate.Thresholds{RejectBelow: 75, PromoteAtOrAbove: 80}
	o := newTestOrchestrator(t, st, &stubSource{candidates: cands}, th, Config{IdeasPerRun: 6})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Rejected+res.Promoted)

	evals, err := st.ListEvaluationsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, evals, 6)
	for _, r := range res.Results {
		want := model.RoutePromoted
		if r.Outcome.TotalScore < 75 {
			want = model.RouteRejected
		}
		assert.Equal(t, want, r.Route)
	}
}

func TestRunOnce_DeduplicatesWithVariants(t *testing.T) {
	st := newMockStore()
	_, err := st.UpsertPromotedPlan(context.Background(), &model.PromotedPlan{Name: "A", CreatedAt: fixedNow})
	require.NoError(t, err)

	src := &stubSource{candidates: []model.Candidate{testCandidate("A"), testCandidate("A"), testCandidate("B")}}
	o := newTestOrchestrator(t, st, src, promoteAll, Config{})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 3)

	var names []string
	for _, r := range res.Results {
		names = append(names, r.Outcome.Candidate.Name)
	}
	assert.Equal(t, []string{"A (B2B)", "A (Premium)", "B"}, names)
	assert.Equal(t, "B2B", res.Results[0].Outcome.Candidate.Variant)
	assert.Contains(t, res.Results[0].Outcome.Candidate.Description, "business customers")
	assert.Equal(t, 0, res.Duplicates)
}

func TestRunOnce_DropsWhenAllVariantsTaken(t *testing.T) {
	st := newMockStore()
	names := []string{"A", "A (B2B)", "A (Premium)", "A (Global)", "A (Niche)", "A (Subscription)"}
	for _, n := range names {
		_, err := st.UpsertPromotedPlan(context.Background(), &model.PromotedPlan{Name: n, CreatedAt: fixedNow})
		require.NoError(t, err)
	}

	src := &stubSource{candidates: []model.Candidate{testCandidate("A")}}
	o := newTestOrchestrator(t, st, src, promoteAll, Config{})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Analyzed)
	assert.Empty(t, res.Results)
}

func TestRunOnce_UpsertIdempotentAcrossRuns(t *testing.T) {
	st := newMockStore()
	st.recentErr = errors.New("history unavailable")
	src := &stubSource{candidates: []model.Candidate{testCandidate("A")}}
	o := newTestOrchestrator(t, st, src, promoteAll, Config{})

	first, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := o.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, first.Results[0].PlanCreated)
	assert.False(t, second.Results[0].PlanCreated)
	assert.Equal(t, 1, st.PromotedPlanCount())

	evals, err := st.ListEvaluationsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, evals, 2)
}

func TestRunOnce_PartialFailureContinues(t *testing.T) {
	st := newMockStore()
	st.upsertErrs["B"] = &pgconn.PgError{Code: "23502", Message: "null value"}
	src := &stubSource{candidates: []model.Candidate{testCandidate("A"), testCandidate("B"), testCandidate("C")}}
	rec := &recordingMetrics{}
	o := newTestOrchestrator(t, st, src, promoteAll, Config{}, WithMetrics(rec))

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Analyzed)
	assert.Equal(t, 2, res.Promoted)
	assert.Equal(t, 1, res.Failed)

	failed := res.FailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, "B", failed[0].Outcome.Candidate.Name)
	assert.Equal(t, StageRoute, failed[0].Stage)
	assert.Equal(t, resilience.ClassPermanent, failed[0].ErrorClass)
	assert.NotEmpty(t, failed[0].EvaluationID)
	assert.Equal(t, 1, rec.outcomes[metrics.OutcomeFailed])

	// The evaluation is still recorded for the failed candidate, but not as
	// saved to the promoted plans.
	evals, err := st.ListEvaluationsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, evals, 3)
	for _, e := range evals {
		assert.Equal(t, e.Name != "B", e.SavedToPromoted, e.Name)
	}
}

func TestRunOnce_RecordFailure(t *testing.T) {
	st := newMockStore()
	st.insertErr = resilience.NewTransientError(errors.New("connection reset"), 0)
	src := &stubSource{candidates: []model.Candidate{testCandidate("A")}}
	o := newTestOrchestrator(t, st, src, promoteAll, Config{})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, StageRecord, res.Results[0].Stage)
	assert.Equal(t, resilience.ClassTransient, res.Results[0].ErrorClass)
	assert.Equal(t, 0, st.PromotedPlanCount())
}

func TestRunOnce_InvalidCandidate(t *testing.T) {
	bad := testCandidate("bad")
	bad.BusinessType = "franchise"
	src := &stubSource{candidates: []model.Candidate{bad, testCandidate("ok")}}
	o := newTestOrchestrator(t, newMockStore(), src, promoteAll, Config{})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Analyzed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, StageEvaluate, res.Results[0].Stage)
	assert.Equal(t, "bad", res.Results[0].Outcome.Candidate.Name)
}

func TestRunOnce_GenerationErrors(t *testing.T) {
	src := &stubSource{
		candidates: []model.Candidate{testCandidate("A")},
		err:        errors.Join(errors.New("bad template 1"), errors.New("bad template 2")),
	}
	o := newTestOrchestrator(t, newMockStore(), src, promoteAll, Config{})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.GenerationErrors)
	assert.Equal(t, 1, res.Analyzed)
}

func TestRunOnce_CancelledBeforeGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newTestOrchestrator(t, newMockStore(), &stubSource{err: context.Canceled}, promoteAll, Config{})

	_, err := o.RunOnce(ctx)
	assert.Error(t, err)
}

func TestRunOnce_Concurrent(t *testing.T) {
	st := newMockStore()
	var cands []model.Candidate
	for i := range 12 {
		cands = append(cands, testCandidate(fmt.Sprintf("idea-%02d", i)))
	}
	o := newTestOrchestrator(t, st, &stubSource{candidates: cands}, promoteAll, Config{IdeasPerRun: 12, Concurrency: 4})

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Promoted)
	assert.Equal(t, 12, st.PromotedPlanCount())
	for i, r := range res.Results {
		assert.Equal(t, fmt.Sprintf("idea-%02d", i), r.Outcome.Candidate.Name)
	}
}

func TestNameLocks_SerialisesSameName(t *testing.T) {
	l := newNameLocks()
	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("same")
			mu.Lock()
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Empty(t, l.locks)
}
