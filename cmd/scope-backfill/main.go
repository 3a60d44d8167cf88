package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/pkg/config"
	"github.com/noah-isme/hms-scope/pkg/logger"
)

var (
	cityID string
	kind   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scope-backfill",
	Short: "Repair work item locations from submitter scope",
	Long: `Infers missing zone and ward ids on field-reported work items from the
submitter's employee scope, and reports QC reviewer visibility.

Configuration is read from .env and the environment (DB_*, REDIS_*,
BACKFILL_*, REPORTS_*). Flags override the matching BACKFILL_* values.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cityID, "city", "", "Restrict to one city id (default: BACKFILL_CITY_ID)")
	rootCmd.PersistentFlags().StringVar(&kind, "kind", "", "Work item kind: feeder_point or litter_bin (default: BACKFILL_KIND)")

	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("city") {
		cfg.Backfill.CityID = cityID
	}
	if cmd.Flags().Changed("kind") {
		cfg.Backfill.Kind = kind
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}
