package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scout/internal/model"
)

// flakyStore fails the first n writes with err and counts reconnects.
type flakyStore struct {
	*MemoryStore
	failures   int
	err        error
	calls      int
	reconnects int
	commitLost bool
}

func (f *flakyStore) InsertEvaluation(ctx context.Context, rec *model.EvaluationRecord) error {
	f.calls++
	if f.calls <= f.failures {
		if f.commitLost {
			_ = f.MemoryStore.InsertEvaluation(ctx, rec)
		}
		return f.err
	}
	return f.MemoryStore.InsertEvaluation(ctx, rec)
}

func (f *flakyStore) UpsertPromotedPlan(ctx context.Context, plan *model.PromotedPlan) (bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return false, f.err
	}
	return f.MemoryStore.UpsertPromotedPlan(ctx, plan)
}

func (f *flakyStore) Reconnect(context.Context) error {
	f.reconnects++
	return nil
}

func newTestGateway(f *flakyStore, retries *[]string) *Gateway {
	return NewGateway(f, GatewayConfig{
		Attempts: 3,
		Delay:    -1,
		OnRetry:  func(op string) { *retries = append(*retries, op) },
	})
}

func TestGateway_RetriesTransientAndReconnects(t *testing.T) {
	f := &flakyStore{MemoryStore: NewMemory(), failures: 2, err: &pgconn.PgError{Code: "08006"}}
	var retries []string
	g := newTestGateway(f, &retries)

	created, err := g.UpsertPromotedPlan(context.Background(), &model.PromotedPlan{Name: "X", TotalScore: 70})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, 2, f.reconnects)
	assert.Equal(t, []string{"upsert promoted plan", "upsert promoted plan"}, retries)
}

func TestGateway_GivesUpAfterAttempts(t *testing.T) {
	f := &flakyStore{MemoryStore: NewMemory(), failures: 10, err: errors.New("connection reset by peer")}
	var retries []string
	g := newTestGateway(f, &retries)

	_, err := g.UpsertPromotedPlan(context.Background(), &model.PromotedPlan{Name: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: upsert promoted plan")
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, 2, f.reconnects)
}

func TestGateway_TerminalErrorNotRetried(t *testing.T) {
	f := &flakyStore{MemoryStore: NewMemory(), failures: 1, err: &pgconn.PgError{Code: "23502"}}
	var retries []string
	g := newTestGateway(f, &retries)

	_, err := g.UpsertPromotedPlan(context.Background(), &model.PromotedPlan{Name: "X"})
	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
	assert.Zero(t, f.reconnects)
	assert.Empty(t, retries)
}

func TestGateway_LostCommitCountsAsInserted(t *testing.T) {
	f := &flakyStore{MemoryStore: NewMemory(), failures: 1, err: errors.New("unexpected EOF"), commitLost: true}
	var retries []string
	g := newTestGateway(f, &retries)
	ctx := context.Background()

	rec := &model.EvaluationRecord{Name: "X"}
	require.NoError(t, g.InsertEvaluation(ctx, rec))

	recs, err := f.ListEvaluationsSince(ctx, rec.CreatedAt)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGateway_Unwrap(t *testing.T) {
	m := NewMemory()
	g := NewGateway(m, GatewayConfig{})
	assert.Same(t, m, g.Unwrap())
	assert.Equal(t, 3, g.cfg.Attempts)
}
