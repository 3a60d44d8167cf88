package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
)

var reportFormat string

// backfillCmd runs one backfill pass
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill in missing zone and ward ids once",
	Long: `Scans work items whose zone or ward is missing and infers the location
from the submitter's employee scope. Prints one JSON line per decision and a
final summary line. Interrupting the run marks the remaining items RUN_ABORTED.

Examples:
  scope-backfill backfill --city c1
  scope-backfill backfill --kind litter_bin --report csv`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&reportFormat, "report", "", "Also write a report file: csv or pdf")
}

// decisionLine is the per-item output record.
type decisionLine struct {
	WorkItemID string          `json:"workItemId"`
	Decision   models.Decision `json:"decision"`
	Reason     string          `json:"reason,omitempty"`
	ZoneID     *string         `json:"zoneId,omitempty"`
	WardID     *string         `json:"wardId,omitempty"`
}

// summaryLine closes the output.
type summaryLine struct {
	Summary *models.BackfillSummary `json:"summary"`
	Report  *models.ReportResult    `json:"report,omitempty"`
}

// jsonLineSink streams decisions as they are made.
type jsonLineSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONLineSink(w io.Writer) *jsonLineSink {
	return &jsonLineSink{enc: json.NewEncoder(w)}
}

func (s *jsonLineSink) Record(_ context.Context, d models.BackfillDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(decisionLine{
		WorkItemID: d.WorkItemID,
		Decision:   d.Decision,
		Reason:     d.Reason,
		ZoneID:     d.ZoneID,
		WardID:     d.WardID,
	})
}

func runBackfill(cmd *cobra.Command, args []string) error {
	format := models.ReportFormat(reportFormat)
	if reportFormat != "" && !format.Valid() {
		return fmt.Errorf("unsupported report format %q", reportFormat)
	}

	cfg, logr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	cfg.Backfill.RetainDecisions = reportFormat != ""

	a, err := newApp(cmd.Context(), cfg, logr, newJSONLineSink(out))
	if err != nil {
		return err
	}
	defer a.Close()

	summary, runErr := a.backfill.Run(cmd.Context(), a.request())
	if summary == nil {
		return runErr
	}

	line := summaryLine{Summary: summary.WithoutDecisions()}
	if reportFormat != "" && a.reports != nil {
		result, err := a.reports.ExportSummary(summary, format)
		if err != nil {
			logr.Error("failed to write report", zap.Error(err))
		} else {
			line.Report = result
		}
	}
	if err := json.NewEncoder(out).Encode(line); err != nil {
		return err
	}
	return runErr
}

