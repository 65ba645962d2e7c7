package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var discoverIdeasFile string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover and evaluate business ideas",
}

var discoverRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discovery pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		runner, err := buildRunner(env, cfg, discoverIdeasFile)
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("discovery run complete",
			zap.String("batch", res.BatchID),
			zap.Int("promoted", res.Promoted),
			zap.Int("rejected", res.Rejected),
			zap.Int("failed", res.Failed),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	discoverRunCmd.Flags().StringVar(&discoverIdeasFile, "ideas", "", "YAML or JSON file of candidates (default: built-in catalog)")
	discoverCmd.AddCommand(discoverRunCmd)
	rootCmd.AddCommand(discoverCmd)
}
