package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/model"
)

// MemoryStore implements Store in process memory. It backs dry runs and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu          sync.Mutex
	evaluations []model.EvaluationRecord
	rejected    []model.RejectedCandidate
	plans       map[string]*model.PromotedPlan
	snapshots   []model.Snapshot
	insights    []model.Insight
	jobs        map[string]time.Time
	now         func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		plans: make(map[string]*model.PromotedPlan),
		jobs:  make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) InsertEvaluation(_ context.Context, rec *model.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	for _, e := range s.evaluations {
		if e.ID == rec.ID {
			return eris.Wrapf(ErrDuplicateKey, "memory: insert evaluation %s", rec.ID)
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.evaluations = append(s.evaluations, *rec)
	return nil
}

func (s *MemoryStore) SetSavedToPromoted(_ context.Context, id string, saved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.evaluations {
		if s.evaluations[i].ID == id {
			s.evaluations[i].SavedToPromoted = saved
			return nil
		}
	}
	return eris.Wrapf(ErrNotFound, "memory: evaluation %s", id)
}

func (s *MemoryStore) ListEvaluationsSince(_ context.Context, since time.Time) ([]model.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.EvaluationRecord
	for i := len(s.evaluations) - 1; i >= 0; i-- {
		if !s.evaluations[i].CreatedAt.Before(since) {
			out = append(out, s.evaluations[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentNames(_ context.Context, filter NameFilter) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[string]struct{})

	n := 0
	for i := len(s.evaluations) - 1; i >= 0 && n < filter.HistoryLimit; i-- {
		if s.evaluations[i].CreatedAt.Before(filter.Since) {
			continue
		}
		names[s.evaluations[i].Name] = struct{}{}
		n++
	}

	plans := make([]*model.PromotedPlan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, p)
	}
	slices.SortFunc(plans, func(a, b *model.PromotedPlan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	for i := 0; i < len(plans) && i < filter.PlanLimit; i++ {
		names[plans[i].Name] = struct{}{}
	}
	return names, nil
}

func (s *MemoryStore) InsertRejected(_ context.Context, rc *model.RejectedCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rejected {
		if r.EvaluationID == rc.EvaluationID {
			return eris.Wrapf(ErrDuplicateKey, "memory: insert rejected for evaluation %s", rc.EvaluationID)
		}
	}
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = s.now().UTC()
	}
	s.rejected = append(s.rejected, *rc)
	return nil
}

func (s *MemoryStore) ListRejectedSince(_ context.Context, since time.Time) ([]model.RejectedCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RejectedCandidate
	for i := len(s.rejected) - 1; i >= 0; i-- {
		if !s.rejected[i].CreatedAt.Before(since) {
			out = append(out, s.rejected[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertPromotedPlan(_ context.Context, plan *model.PromotedPlan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if existing, ok := s.plans[plan.Name]; ok {
		existing.TotalScore = plan.TotalScore
		existing.MarketScore = plan.MarketScore
		existing.RevenueScore = plan.RevenueScore
		existing.FeasibilityScore = plan.FeasibilityScore
		existing.Priority = plan.Priority
		existing.RiskLevel = plan.RiskLevel
		existing.Status = plan.Status
		existing.UpdatedAt = now
		plan.ID, plan.CreatedAt, plan.UpdatedAt = existing.ID, existing.CreatedAt, now
		return false, nil
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	cp := *plan
	s.plans[plan.Name] = &cp
	return true, nil
}

func (s *MemoryStore) GetPromotedPlan(_ context.Context, name string) (*model.PromotedPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[name]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: promoted plan %s", name)
	}
	cp := *p
	return &cp, nil
}

// PromotedPlanCount returns the number of distinct promoted plans.
func (s *MemoryStore) PromotedPlanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

func (s *MemoryStore) InsertSnapshot(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now().UTC()
	}
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

// Snapshots returns every stored snapshot, oldest first.
func (s *MemoryStore) Snapshots() []model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snapshots)
}

func (s *MemoryStore) InsertInsight(_ context.Context, in *model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}
	s.insights = append(s.insights, *in)
	return nil
}

func (s *MemoryStore) ListInsights(_ context.Context, filter InsightFilter) ([]model.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultInsightLimit
	}
	var out []model.Insight
	for i := len(s.insights) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.Status != "" && s.insights[i].Status != filter.Status {
			continue
		}
		out = append(out, s.insights[i])
	}
	return out, nil
}

func (s *MemoryStore) GetLastRun(_ context.Context, job string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[job], nil
}

func (s *MemoryStore) SetLastRun(_ context.Context, job string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job] = at
	return nil
}
