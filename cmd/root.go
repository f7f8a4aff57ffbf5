package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obralink/vale-audit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vale-audit",
	Short: "Delivery receipt audit pipeline",
	Long:  "Audits construction material delivery receipts (vales): extracts fields from receipt photos via Claude vision, validates them against the reference sheet, and files each vale as approved, inconsistent or needing manual review.",
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
