package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gridlink",
	Short: "Renewable plant to substation connection planner",
	Long: "Loads substation and renewable plant datasets, picks the cheapest cable and substation for every plant " +
		"under capacity limits, and renders the resulting plans as maps, GeoJSON and spreadsheets.",
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
