package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
	"github.com/noah-isme/hms-scope/pkg/export"
	"github.com/noah-isme/hms-scope/pkg/ids"
)

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type decisionLister interface {
	ListByRun(ctx context.Context, runID string) ([]models.BackfillDecision, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table, title string) ([]byte, error)
}

var reportHeaders = []string{"workItemId", "requestedById", "decision", "reason", "zoneId", "wardId", "detail", "decidedAt"}

// ReportService renders backfill runs as CSV or PDF files.
type ReportService struct {
	storage   reportStorage
	decisions decisionLister
	csv       csvRenderer
	pdf       pdfRenderer
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService. decisions may be nil when the
// audit table is not in use; only ExportRun needs it.
func NewReportService(storage reportStorage, decisions decisionLister, retention time.Duration, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVRenderer()
	}
	if pdf == nil {
		pdf = export.NewPDFRenderer()
	}
	return &ReportService{
		storage:   storage,
		decisions: decisions,
		csv:       csv,
		pdf:       pdf,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// ExportSummary renders a finished run.
func (s *ReportService) ExportSummary(summary *models.BackfillSummary, format models.ReportFormat) (*models.ReportResult, error) {
	if summary == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "summary is required")
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	table := buildDecisionTable(summary)
	var (
		payload []byte
		err     error
	)
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(table)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(table, fmt.Sprintf("Scope backfill %s", summary.Kind))
	}
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", format, err)
	}

	filename := fmt.Sprintf("scope_backfill_%s_%s.%s", sanitizeFilename(string(summary.Kind)), sanitizeFilename(summary.RunID), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	s.logger.Info("backfill report written",
		zap.String("run_id", summary.RunID),
		zap.String("path", relPath),
		zap.String("format", string(format)),
	)
	return &models.ReportResult{
		RunID:        summary.RunID,
		RelativePath: relPath,
		Format:       format,
		Rows:         len(table.Rows),
		GeneratedAt:  s.now().UTC(),
	}, nil
}

// ExportRun rebuilds a run from the audit table and renders it.
func (s *ReportService) ExportRun(ctx context.Context, runID string, format models.ReportFormat) (*models.ReportResult, error) {
	if s.decisions == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision audit table is not enabled")
	}
	decisions, err := s.decisions.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no decisions recorded for run %s", runID))
	}
	return s.ExportSummary(SummaryFromDecisions(runID, decisions), format)
}

// Cleanup removes reports older than the retention window.
func (s *ReportService) Cleanup() ([]string, error) {
	removed, err := s.storage.CleanupOlderThan(s.retention)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// SummaryFromDecisions folds stored decisions back into a run summary. Start
// time comes from the run id when it carries one.
func SummaryFromDecisions(runID string, decisions []models.BackfillDecision) *models.BackfillSummary {
	summary := &models.BackfillSummary{RunID: runID, Reasons: map[string]int{}}
	if started, ok := ids.RunTime(runID); ok {
		summary.StartedAt = started
	}
	for _, d := range decisions {
		if summary.Kind == "" {
			summary.Kind = d.Kind
		}
		if d.Reason == appErrors.ErrRunAborted.Code {
			summary.Aborted = true
		}
		if d.DecidedAt.After(summary.FinishedAt) {
			summary.FinishedAt = d.DecidedAt
		}
		summary.Record(d)
	}
	return summary
}

func buildDecisionTable(summary *models.BackfillSummary) export.Table {
	rows := make([]map[string]string, 0, len(summary.Decisions))
	for _, d := range summary.Decisions {
		rows = append(rows, map[string]string{
			"workItemId":    d.WorkItemID,
			"requestedById": deref(d.RequestedByID),
			"decision":      string(d.Decision),
			"reason":        d.Reason,
			"zoneId":        deref(d.ZoneID),
			"wardId":        deref(d.WardID),
			"detail":        d.Detail,
			"decidedAt":     d.DecidedAt.UTC().Format(time.RFC3339),
		})
	}

	footer := []string{
		fmt.Sprintf("run %s kind %s city %s", summary.RunID, summary.Kind, orDash(summary.CityID)),
		fmt.Sprintf("scanned=%d updated=%d skipped=%d aborted=%t", summary.Scanned, summary.Updated, summary.Skipped, summary.Aborted),
	}
	if len(summary.Reasons) > 0 {
		codes := make([]string, 0, len(summary.Reasons))
		for code := range summary.Reasons {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%s=%d", code, summary.Reasons[code]))
		}
		footer = append(footer, "reasons: "+strings.Join(parts, " "))
	}
	return export.Table{Headers: reportHeaders, Rows: rows, Footer: footer}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
