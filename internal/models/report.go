package models

import "time"

// ReportFormat enumerates supported report formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Valid reports whether the format can be rendered.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// ReportResult describes a rendered run report.
type ReportResult struct {
	RunID        string       `json:"runId"`
	RelativePath string       `json:"path"`
	Format       ReportFormat `json:"format"`
	Rows         int          `json:"rows"`
	GeneratedAt  time.Time    `json:"generatedAt"`
}
