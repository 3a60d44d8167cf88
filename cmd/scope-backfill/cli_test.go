package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hms-scope/internal/models"
)

func strPtr(v string) *string { return &v }

func TestJSONLineSinkWritesOneLinePerDecision(t *testing.T) {
	var buf bytes.Buffer
	sink := newJSONLineSink(&buf)

	require.NoError(t, sink.Record(context.Background(), models.BackfillDecision{
		WorkItemID: "fp-1", Decision: models.DecisionUpdated, ZoneID: strPtr("Z1"), WardID: strPtr("W1"), Detail: "ignored",
	}))
	require.NoError(t, sink.Record(context.Background(), models.BackfillDecision{
		WorkItemID: "fp-2", Decision: models.DecisionSkipped, Reason: "SCOPE_NOT_FOUND",
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"workItemId":"fp-1","decision":"updated","zoneId":"Z1","wardId":"W1"}`, lines[0])
	assert.JSONEq(t, `{"workItemId":"fp-2","decision":"skipped","reason":"SCOPE_NOT_FOUND"}`, lines[1])
}

func TestSummaryLineOmitsDecisions(t *testing.T) {
	summary := &models.BackfillSummary{RunID: "run-1", Scanned: 1, Decisions: []models.BackfillDecision{{WorkItemID: "fp-1"}}}

	trimmed := summary.WithoutDecisions()
	assert.Nil(t, trimmed.Decisions)
	assert.Len(t, summary.Decisions, 1)

	raw, err := json.Marshal(summaryLine{Summary: trimmed})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "decisions")
	assert.NotContains(t, string(raw), "report")
}

func TestBackfillRejectsUnknownReportFormat(t *testing.T) {
	reportFormat = "xlsx"
	defer func() { reportFormat = "" }()

	err := runBackfill(backfillCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx")
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"backfill", "pending", "report", "serve"} {
		assert.True(t, names[want], "missing %s command", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("city"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("kind"))
	assert.NotNil(t, backfillCmd.Flags().Lookup("report"))
	assert.NotNil(t, pendingCmd.Flags().Lookup("module"))
}
