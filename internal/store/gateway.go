package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/resilience"
)

// GatewayConfig tunes the commit retry policy.
type GatewayConfig struct {
	Attempts int           // total attempts per operation
	Delay    time.Duration // fixed wait between attempts

	// OnRetry observes every retry with the operation name.
	OnRetry func(op string)
}

// Gateway wraps a Store with a bounded retry policy. Before each retry the
// underlying store reconnects when it implements Reconnector, so a failed
// session is replaced rather than reused. Only retryable errors (see
// IsRetryable) are retried.
type Gateway struct {
	inner Store
	cfg   GatewayConfig
}

var _ Store = (*Gateway)(nil)

// NewGateway wraps s. Zero config values fall back to 3 attempts 1s
// apart; a negative delay retries immediately.
func NewGateway(s Store, cfg GatewayConfig) *Gateway {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	} else if cfg.Delay == 0 {
		cfg.Delay = time.Second
	}
	return &Gateway{inner: s, cfg: cfg}
}

// Unwrap returns the wrapped store.
func (g *Gateway) Unwrap() Store {
	return g.inner
}

func (g *Gateway) policy(op string) resilience.Policy {
	p := resilience.FixedPolicy(g.cfg.Attempts, g.cfg.Delay)
	p.ShouldRetry = IsRetryable
	log := resilience.RetryLogger("store", op)
	p.OnRetry = func(attempt int, err error) {
		log(attempt, err)
		if g.cfg.OnRetry != nil {
			g.cfg.OnRetry(op)
		}
	}
	if rc, ok := g.inner.(Reconnector); ok {
		p.BeforeRetry = rc.Reconnect
	}
	return p
}

func (g *Gateway) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := resilience.Do(ctx, g.policy(op), fn)
	return eris.Wrapf(err, "store: %s", op)
}

// insertOnce runs an insert keyed by a caller-assigned id. A duplicate key
// on a retry means an earlier attempt committed before its reply was lost,
// so it counts as success.
func (g *Gateway) insertOnce(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return g.do(ctx, op, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if attempt > 1 && errors.Is(err, ErrDuplicateKey) {
			return nil
		}
		return err
	})
}

func (g *Gateway) InsertEvaluation(ctx context.Context, rec *model.EvaluationRecord) error {
	return g.insertOnce(ctx, "insert evaluation", func(ctx context.Context) error {
		return g.inner.InsertEvaluation(ctx, rec)
	})
}

func (g *Gateway) ListEvaluationsSince(ctx context.Context, since time.Time) ([]model.EvaluationRecord, error) {
	var out []model.EvaluationRecord
	err := g.do(ctx, "list evaluations", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListEvaluationsSince(ctx, since)
		return err
	})
	return out, err
}

func (g *Gateway) SetSavedToPromoted(ctx context.Context, id string, saved bool) error {
	return g.do(ctx, "set saved to promoted", func(ctx context.Context) error {
		return g.inner.SetSavedToPromoted(ctx, id, saved)
	})
}

func (g *Gateway) RecentNames(ctx context.Context, filter NameFilter) (map[string]struct{}, error) {
	var out map[string]struct{}
	err := g.do(ctx, "recent names", func(ctx context.Context) error {
		var err error
		out, err = g.inner.RecentNames(ctx, filter)
		return err
	})
	return out, err
}

func (g *Gateway) InsertRejected(ctx context.Context, rc *model.RejectedCandidate) error {
	return g.insertOnce(ctx, "insert rejected", func(ctx context.Context) error {
		return g.inner.InsertRejected(ctx, rc)
	})
}

func (g *Gateway) ListRejectedSince(ctx context.Context, since time.Time) ([]model.RejectedCandidate, error) {
	var out []model.RejectedCandidate
	err := g.do(ctx, "list rejected", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListRejectedSince(ctx, since)
		return err
	})
	return out, err
}

func (g *Gateway) UpsertPromotedPlan(ctx context.Context, plan *model.PromotedPlan) (bool, error) {
	var created bool
	err := g.do(ctx, "upsert promoted plan", func(ctx context.Context) error {
		var err error
		created, err = g.inner.UpsertPromotedPlan(ctx, plan)
		return err
	})
	return created, err
}

// GetPromotedPlan is not retried on ErrNotFound.
func (g *Gateway) GetPromotedPlan(ctx context.Context, name string) (*model.PromotedPlan, error) {
	var out *model.PromotedPlan
	err := g.do(ctx, "get promoted plan", func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetPromotedPlan(ctx, name)
		return err
	})
	return out, err
}

func (g *Gateway) InsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	return g.insertOnce(ctx, "insert snapshot", func(ctx context.Context) error {
		return g.inner.InsertSnapshot(ctx, snap)
	})
}

func (g *Gateway) InsertInsight(ctx context.Context, in *model.Insight) error {
	return g.insertOnce(ctx, "insert insight", func(ctx context.Context) error {
		return g.inner.InsertInsight(ctx, in)
	})
}

func (g *Gateway) ListInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error) {
	var out []model.Insight
	err := g.do(ctx, "list insights", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListInsights(ctx, filter)
		return err
	})
	return out, err
}

func (g *Gateway) GetLastRun(ctx context.Context, job string) (time.Time, error) {
	var at time.Time
	err := g.do(ctx, "get last run", func(ctx context.Context) error {
		var err error
		at, err = g.inner.GetLastRun(ctx, job)
		return err
	})
	return at, err
}

func (g *Gateway) SetLastRun(ctx context.Context, job string, at time.Time) error {
	return g.do(ctx, "set last run", func(ctx context.Context) error {
		return g.inner.SetLastRun(ctx, job, at)
	})
}

func (g *Gateway) Ping(ctx context.Context) error    { return g.inner.Ping(ctx) }
func (g *Gateway) Migrate(ctx context.Context) error { return g.inner.Migrate(ctx) }
func (g *Gateway) Close() error                      { return g.inner.Close() }
