package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mc-extractor",
	Short: "FMCSA SAFER carrier contact extractor",
	Long:  "Looks up MC numbers on FMCSA SAFER, keeps active authorized general-freight carriers with US addresses, and extracts their contact details to CSV.",
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
