package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/idea-scout/internal/schedule"
)

var scheduleAddr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run discovery on the configured schedule and serve /health and /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "schedule")
		if err != nil {
			return err
		}
		defer env.Close()

		runner, err := buildRunner(env, cfg, "")
		if err != nil {
			return err
		}

		sc := cfg.Schedule
		loc := time.Local
		if sc.Timezone != "" {
			if loc, err = time.LoadLocation(sc.Timezone); err != nil {
				return eris.Wrap(err, "load schedule timezone")
			}
		}

		opts := []schedule.Option{}
		if sc.Lock == "redis" {
			client, err := schedule.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer client.Close()
			opts = append(opts, schedule.WithLock(schedule.NewRedisLock(client, sc.LockTTL)))
		}

		sched, err := schedule.New(env.Store, func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		}, schedule.Config{
			Job:          "discovery",
			Hours:        sc.Hours,
			MinuteWindow: sc.MinuteWindow,
			PollInterval: sc.PollInterval,
			Location:     loc,
		}, opts...)
		if err != nil {
			return err
		}

		addr := scheduleAddr
		if addr == "" {
			addr = cfg.Metrics.Addr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           buildMux(env.Store, env.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			// Graceful shutdown
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// pinger is the health dependency of the daemon.
type pinger interface {
	Ping(ctx context.Context) error
}

func buildMux(db pinger, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleAddr, "addr", "", "listen address for /health and /metrics (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}
