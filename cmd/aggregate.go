package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scout/internal/model"
)

var (
	snapshotWindow string
	insightsStatus string
	insightsLimit  int
	historyDays    int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Aggregate recent evaluations into a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "aggregate")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := newAggregator(env.Store, cfg.Aggregate).Snapshot(ctx, model.WindowType(snapshotWindow))
		if err != nil {
			return err
		}
		if snap == nil {
			zap.L().Info("no evaluations in window", zap.String("window", snapshotWindow))
			return nil
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate and list insights",
}

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "aggregate")
		if err != nil {
			return err
		}
		defer env.Close()

		insights, err := newAggregator(env.Store, cfg.Aggregate).ListInsights(ctx, model.InsightStatus(insightsStatus), insightsLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), insights)
	},
}

var insightsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Apply the insight rules to recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "aggregate")
		if err != nil {
			return err
		}
		defer env.Close()

		insights, err := newAggregator(env.Store, cfg.Aggregate).GenerateInsights(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), insights)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect evaluation history",
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the evaluation history of the last days",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "aggregate")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := newAggregator(env.Store, cfg.Aggregate).HistoryStats(ctx, historyDays)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotWindow, "window", string(model.WindowHourly), "snapshot window: hourly, daily or weekly")
	insightsListCmd.Flags().StringVar(&insightsStatus, "status", string(model.InsightNew), "insight status filter, empty for all")
	insightsListCmd.Flags().IntVar(&insightsLimit, "limit", 0, "max insights to list (default 100)")
	historyStatsCmd.Flags().IntVar(&historyDays, "days", 7, "days of history to summarise")

	insightsCmd.AddCommand(insightsListCmd, insightsGenerateCmd)
	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(snapshotCmd, insightsCmd, historyCmd)
}
