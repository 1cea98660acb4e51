package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "flood-cli",
	Short: "Seasonal and flood water classification from radar backscatter",
	Long: "Composes bi-weekly radar periods, classifies perennial, seasonal and flood water " +
		"against historical frequency, extracts flood regions and sweeps thresholds against ground truth.",
	SilenceUsage: true,
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
