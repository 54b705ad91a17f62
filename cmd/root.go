package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stayguide/guide-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "guide-cli",
	Short: "Place discovery and import pipeline for stay guides",
	Long:  "Searches nearby places by category, flags duplicates against the existing guide, and imports curated selections with details, photos, and generated descriptions.",
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
