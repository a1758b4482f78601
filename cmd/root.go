package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "planning-cli",
	Short: "Multi-year commercial planning engine",
	Long:  "Imports historical per-SKU sales, projects five-year volume/revenue baselines, applies planner overrides with bottom-up rollup, and scores forecasting granularities.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
