package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scout/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_Evaluations(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &model.EvaluationRecord{Name: "old", Candidate: model.Candidate{Name: "old"}, DiscoveryBatch: "b0", CreatedAt: now.Add(-48 * time.Hour)}
	recent := &model.EvaluationRecord{
		Name:               "recent",
		Category:           "AI",
		Keyword:            "recent",
		BusinessType:       model.BusinessSaaS,
		Candidate:          model.Candidate{Name: "recent", Category: "AI"},
		MarketScore:        90,
		RevenueScore:       70,
		TotalScore:         82,
		Recommendation:     model.RecommendImmediate,
		DiscoveryBatch:     "b1",
		SavedToPromoted:    true,
		AnalysisDurationMs: 7,
		Analysis:           json.RawMessage(`{"market_score":90}`),
	}
	require.NoError(t, st.InsertEvaluation(ctx, old))
	require.NoError(t, st.InsertEvaluation(ctx, recent))

	recs, err := st.ListEvaluationsSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got := recs[0]
	assert.Equal(t, "recent", got.Name)
	assert.Equal(t, model.BusinessSaaS, got.BusinessType)
	assert.Equal(t, 82.0, got.TotalScore)
	assert.True(t, got.SavedToPromoted)
	assert.JSONEq(t, `{"market_score":90}`, string(got.Analysis))
	assert.Equal(t, "AI", got.Candidate.Category)

	err = st.InsertEvaluation(ctx, &model.EvaluationRecord{ID: recent.ID, Name: "dup", DiscoveryBatch: "b1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSQLite_SetSavedToPromoted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := &model.EvaluationRecord{Name: "x", Candidate: model.Candidate{Name: "x"}, DiscoveryBatch: "b1", SavedToPromoted: true}
	require.NoError(t, st.InsertEvaluation(ctx, rec))
	require.NoError(t, st.SetSavedToPromoted(ctx, rec.ID, false))

	recs, err := st.ListEvaluationsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].SavedToPromoted)

	assert.ErrorIs(t, st.SetSavedToPromoted(ctx, "missing", false), ErrNotFound)
}

func TestSQLite_RecentNames(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.InsertEvaluation(ctx, &model.EvaluationRecord{Name: "stale", DiscoveryBatch: "b", CreatedAt: now.Add(-10 * 24 * time.Hour)}))
	require.NoError(t, st.InsertEvaluation(ctx, &model.EvaluationRecord{Name: "fresh", DiscoveryBatch: "b", CreatedAt: now}))
	_, err := st.UpsertPromotedPlan(ctx, &model.PromotedPlan{Name: "planned", DiscoveryBatch: "b", RiskLevel: model.RiskHigh, Priority: model.PriorityMedium, Status: model.PlanApproved})
	require.NoError(t, err)

	names, err := st.RecentNames(ctx, NameFilter{Since: now.Add(-7 * 24 * time.Hour), HistoryLimit: 500, PlanLimit: 200})
	require.NoError(t, err)
	assert.Contains(t, names, "fresh")
	assert.Contains(t, names, "planned")
	assert.NotContains(t, names, "stale")
}

func TestSQLite_UpsertPromotedPlan_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.PromotedPlan{
		Name:           "AI 회의록",
		Description:    "meeting notes",
		RiskLevel:      model.RiskHigh,
		Priority:       model.PriorityMedium,
		Status:         model.PlanApproved,
		TotalScore:     70,
		DiscoveryBatch: "b1",
	}
	created, err := st.UpsertPromotedPlan(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &model.PromotedPlan{
		Name:           "AI 회의록",
		Description:    "ignored on update",
		RiskLevel:      model.RiskMedium,
		Priority:       model.PriorityHigh,
		Status:         model.PlanApproved,
		TotalScore:     85,
		DiscoveryBatch: "b2",
	}
	created, err = st.UpsertPromotedPlan(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	got, err := st.GetPromotedPlan(ctx, "AI 회의록")
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.TotalScore)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, "meeting notes", got.Description)

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM promoted_plans`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_GetPromotedPlan_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetPromotedPlan(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Rejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := &model.EvaluationRecord{Name: "weak", DiscoveryBatch: "b"}
	require.NoError(t, st.InsertEvaluation(ctx, rec))

	rc := &model.RejectedCandidate{
		EvaluationID:  rec.ID,
		Name:          "weak",
		Category:      "NFT",
		TotalScore:    50,
		FailureReason: model.FailureBoth,
		Suggestions: []model.Suggestion{
			{Area: "market", Severity: model.SeverityHigh, Suggestion: "pick a growing domain"},
		},
		DiscoveryBatch: "b",
	}
	require.NoError(t, st.InsertRejected(ctx, rc))

	out, err := st.ListRejectedSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.FailureBoth, out[0].FailureReason)
	assert.Equal(t, rc.Suggestions, out[0].Suggestions)

	err = st.InsertRejected(ctx, &model.RejectedCandidate{EvaluationID: rec.ID, Name: "weak", FailureReason: model.FailureBoth, DiscoveryBatch: "b"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSQLite_Insights(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, status := range []model.InsightStatus{model.InsightNew, model.InsightDismissed, model.InsightNew} {
		require.NoError(t, st.InsertInsight(ctx, &model.Insight{
			Type:             model.InsightTrend,
			Category:         "AI",
			Title:            "AI is hot",
			Evidence:         map[string]any{"count": 3},
			ConfidenceScore:  0.9,
			ImpactLevel:      model.ImpactHigh,
			Actionable:       true,
			SuggestedActions: []string{"generate more AI ideas"},
			Status:           status,
		}))
	}

	out, err := st.ListInsights(ctx, InsightFilter{Status: model.InsightNew})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, float64(3), out[0].Evidence["count"])

	all, err := st.ListInsights(ctx, InsightFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_Snapshot(t *testing.T) {
	st := newTestSQLiteStore(t)
	snap := &model.Snapshot{WindowType: model.WindowHourly, WindowStart: time.Now().Add(-time.Hour), TotalAnalyzed: 3}
	require.NoError(t, st.InsertSnapshot(context.Background(), snap))
	assert.NotEmpty(t, snap.ID)
}

func TestSQLite_LastRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := st.GetLastRun(ctx, "discovery")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	first := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.SetLastRun(ctx, "discovery", first))
	require.NoError(t, st.SetLastRun(ctx, "discovery", first.Add(time.Hour)))

	got, err = st.GetLastRun(ctx, "discovery")
	require.NoError(t, err)
	assert.True(t, got.Equal(first.Add(time.Hour)))
}
