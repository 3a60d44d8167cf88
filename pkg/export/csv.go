package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is a report body: one row per decision keyed by column header, plus
// free-text footer lines that only the PDF layout prints.
type Table struct {
	Headers []string
	Rows    []map[string]string
	Footer  []string
}

// CSVRenderer writes a Table as a header row followed by one record per row.
type CSVRenderer struct{}

// NewCSVRenderer returns a CSV report renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// Render encodes t. Cells missing from a row are written empty.
func (r *CSVRenderer) Render(t Table) ([]byte, error) {
	if len(t.Headers) == 0 {
		return nil, fmt.Errorf("csv report has no columns")
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("write csv report header: %w", err)
	}
	record := make([]string, len(t.Headers))
	for n, row := range t.Rows {
		for i, header := range t.Headers {
			record[i] = row[header]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv report row %d: %w", n+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv report: %w", err)
	}
	return buf.Bytes(), nil
}
