package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hms-scope/internal/models"
)

var moduleName string

// pendingCmd prints QC reviewer visibility for a city
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show pending QC work per reviewer scope",
	Long: `Lists the module's QC reviewers in a city with the number of pending work
items inside each reviewer's scope, and counts pending items no reviewer can
see.

Example:
  scope-backfill pending --city c1 --module TASKFORCE`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

func init() {
	pendingCmd.Flags().StringVar(&moduleName, "module", "", "Module name (default: BACKFILL_MODULE_NAME)")
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Backfill.CityID == "" {
		return fmt.Errorf("--city is required")
	}
	if moduleName != "" {
		cfg.Backfill.ModuleName = moduleName
	}

	a, err := newApp(cmd.Context(), cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.qc.PendingReport(cmd.Context(), models.WorkItemKind(cfg.Backfill.Kind), cfg.Backfill.CityID, cfg.Backfill.ModuleName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
