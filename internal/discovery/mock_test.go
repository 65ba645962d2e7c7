package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/notify"
	"github.com/sells-group/idea-scout/internal/store"
)

// mockStore wraps an in-memory store with failure injection.
type mockStore struct {
	*store.MemoryStore

	recentErr   error
	insertErr   error
	rejectedErr error
	upsertErrs  map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{MemoryStore: store.NewMemory(), upsertErrs: map[string]error{}}
}

func (m *mockStore) RecentNames(ctx context.Context, f store.NameFilter) (map[string]struct{}, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.MemoryStore.RecentNames(ctx, f)
}

func (m *mockStore) InsertEvaluation(ctx context.Context, rec *model.EvaluationRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	return m.MemoryStore.InsertEvaluation(ctx, rec)
}

func (m *mockStore) InsertRejected(ctx context.Context, rc *model.RejectedCandidate) error {
	if m.rejectedErr != nil {
		return m.rejectedErr
	}
	return m.MemoryStore.InsertRejected(ctx, rc)
}

func (m *mockStore) UpsertPromotedPlan(ctx context.Context, plan *model.PromotedPlan) (bool, error) {
	if err, ok := m.upsertErrs[plan.Name]; ok {
		return false, err
	}
	return m.MemoryStore.UpsertPromotedPlan(ctx, plan)
}

// stubSource returns fixed candidates and error.
type stubSource struct {
	candidates []model.Candidate
	err        error
	requested  int
}

func (s *stubSource) Generate(_ context.Context, n int) ([]model.Candidate, error) {
	s.requested = n
	return s.candidates, s.err
}

// recordingSink captures sent messages.
type recordingSink struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (s *recordingSink) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		out = append(out, m.Kind)
	}
	return out
}

// stubAggregator counts calls.
type stubAggregator struct {
	windows  []model.WindowType
	insights int
	err      error
}

func (a *stubAggregator) Snapshot(_ context.Context, w model.WindowType) (*model.Snapshot, error) {
	a.windows = append(a.windows, w)
	if a.err != nil {
		return nil, a.err
	}
	return &model.Snapshot{WindowType: w}, nil
}

func (a *stubAggregator) GenerateInsights(context.Context) ([]model.Insight, error) {
	a.insights++
	return nil, a.err
}

// recordingMetrics counts evaluation outcomes.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	runs     int
}

func (m *recordingMetrics) RecordEvaluation(outcome string, _ float64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *recordingMetrics) RecordRun(time.Time, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}
