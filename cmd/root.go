package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geo-audit",
	Short: "Brand visibility audits across AI answer engines",
	Long:  "Asks AI answer surfaces (OpenAI, Anthropic, Perplexity) a set of queries, extracts the brands and links they mention, and scores how visible a brand is.",
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
