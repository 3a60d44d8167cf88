package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hms-scope/internal/models"
)

var (
	reportRunID     string
	reportOutFormat string
)

// reportCmd renders a past run from the audit table
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a recorded run as CSV or PDF",
	Long: `Rebuilds a run from the ScopeBackfillAudit table and writes a report file
under REPORTS_STORAGE_DIR. Requires runs made with BACKFILL_PERSIST_AUDIT=true.

Example:
  scope-backfill report --run 01HQ... --format pdf`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "Run id to render")
	reportCmd.Flags().StringVar(&reportOutFormat, "format", string(models.ReportFormatCSV), "Report format: csv or pdf")
	_ = reportCmd.MarkFlagRequired("run")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.reports == nil {
		return fmt.Errorf("report storage %s is unavailable", cfg.Reports.StorageDir)
	}

	result, err := a.reports.ExportRun(cmd.Context(), reportRunID, models.ReportFormat(reportOutFormat))
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
}
