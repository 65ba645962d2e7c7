package main

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scout/internal/aggregate"
	"github.com/sells-group/idea-scout/internal/config"
	"github.com/sells-group/idea-scout/internal/discovery"
	"github.com/sells-group/idea-scout/internal/evaluate"
	"github.com/sells-group/idea-scout/internal/finance"
	"github.com/sells-group/idea-scout/internal/metrics"
	"github.com/sells-group/idea-scout/internal/notify"
	"github.com/sells-group/idea-scout/internal/resilience"
	"github.com/sells-group/idea-scout/internal/scoring"
	"github.com/sells-group/idea-scout/internal/store"
)

// appEnv holds the store and instruments shared by every command. Callers
// should defer env.Close().
type appEnv struct {
	Store    store.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder

	closers []func()
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens the store behind a retrying
// gateway and applies the schema.
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	inner, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	st := store.NewGateway(inner, store.GatewayConfig{
		Attempts: c.Discovery.CommitAttempts,
		Delay:    c.Discovery.CommitDelay,
		OnRetry:  rec.RecordCommitRetry,
	})

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return &appEnv{Store: st, Registry: reg, Metrics: rec}, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "idea-scout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// newRand returns a PCG source seeded from seed, or from the clock when seed
// is zero.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func newEvaluator(c *config.Config) (*evaluate.Evaluator, error) {
	tables, err := scoring.DefaultTables()
	if err != nil {
		return nil, err
	}
	var rng scoring.Rand
	if c.Scoring.Jitter {
		rng = newRand(c.Scoring.Seed)
	}
	return evaluate.New(scoring.NewEngine(tables, rng), finance.NewSimulator(), evaluate.Thresholds{
		RejectBelow:      c.Discovery.RejectBelow,
		PromoteAtOrAbove: c.Discovery.PromoteAtOrAbove,
	})
}

func newSource(c *config.Config, ideasFile string) (discovery.Source, error) {
	if ideasFile == "" {
		ideasFile = c.Discovery.IdeasFile
	}
	if ideasFile != "" {
		return discovery.FileSource{Path: ideasFile}, nil
	}
	return discovery.DefaultCatalogSource(newRand(c.Scoring.Seed))
}

func newAggregator(st store.Store, ac config.AggregateConfig) *aggregate.Service {
	return aggregate.New(st, aggregate.Config{
		HighScore:   ac.HighScore,
		LowScore:    ac.LowScore,
		MinHigh:     ac.MinHigh,
		MinLow:      ac.MinLow,
		MinPromoted: ac.MinPromoted,
		Window:      ac.Window,
	})
}

// initSink builds the notification fan-out. Every configured sink sits
// behind its own circuit breaker.
func initSink(nc config.NotifyConfig) (notify.Sink, func(), error) {
	noop := func() {}
	if !nc.Enabled {
		return notify.Noop{}, noop, nil
	}

	var sinks notify.Multi
	closeFn := noop
	if nc.WebhookURL != "" {
		sinks = append(sinks, notify.NewGuarded(notify.NewWebhookSink(nc.WebhookURL), resilience.DefaultBreakerConfig()))
	}
	if len(nc.KafkaBrokers) > 0 {
		k, err := notify.NewKafkaSink(nc.KafkaBrokers, nc.KafkaTopic)
		if err != nil {
			return nil, noop, err
		}
		sinks = append(sinks, notify.NewGuarded(k, resilience.DefaultBreakerConfig()))
		closeFn = func() {
			if err := k.Close(); err != nil {
				zap.L().Warn("close kafka sink", zap.Error(err))
			}
		}
	}

	switch len(sinks) {
	case 0:
		return notify.Noop{}, noop, nil
	case 1:
		return sinks[0], closeFn, nil
	default:
		return sinks, closeFn, nil
	}
}

// buildRunner wires the evaluator, source, orchestrator and post-run
// side effects for env.
func buildRunner(env *appEnv, c *config.Config, ideasFile string) (*discovery.Runner, error) {
	ev, err := newEvaluator(c)
	if err != nil {
		return nil, err
	}
	src, err := newSource(c, ideasFile)
	if err != nil {
		return nil, err
	}
	d := c.Discovery
	orch, err := discovery.New(env.Store, ev, src, discovery.Config{
		IdeasPerRun:  d.IdeasPerRun,
		LookbackDays: d.LookbackDays,
		HistoryLimit: d.HistoryLimit,
		PlanLimit:    d.PlanLimit,
		PaceInterval: d.PaceInterval,
		Concurrency:  d.Concurrency,
	}, discovery.WithMetrics(env.Metrics))
	if err != nil {
		return nil, err
	}

	sink, closeSink, err := initSink(c.Notify)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, closeSink)

	return discovery.NewRunner(orch, newAggregator(env.Store, c.Aggregate), sink, discovery.RunnerConfig{
		HighScoreThreshold: c.Notify.HighScoreThreshold,
		MaxListed:          c.Notify.MaxListed,
	}), nil
}
