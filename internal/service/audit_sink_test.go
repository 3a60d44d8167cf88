package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/hms-scope/internal/models"
)

func TestLogSinkRecordsDecisionFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), models.BackfillDecision{
		RunID:         "run-1",
		Kind:          models.WorkItemKindFeederPoint,
		WorkItemID:    "fp-1",
		CityID:        "city-1",
		RequestedByID: strPtr("emp-1"),
		Decision:      models.DecisionUpdated,
		ZoneID:        strPtr("Z1"),
		WardID:        strPtr("W1"),
	}))
	require.NoError(t, sink.Record(context.Background(), models.BackfillDecision{
		RunID:      "run-1",
		Kind:       models.WorkItemKindFeederPoint,
		WorkItemID: "fp-2",
		Decision:   models.DecisionSkipped,
		Reason:     "INCONSISTENT_HIERARCHY",
		Detail:     "ward W9 belongs to zone Z9, not Z1",
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	updated := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "scope_backfill.decision", updated["event"])
	assert.Equal(t, "fp-1", updated["work_item_id"])
	assert.Equal(t, "Z1", updated["zone_id"])
	assert.Equal(t, "emp-1", updated["requested_by_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "INCONSISTENT_HIERARCHY", entries[1].ContextMap()["reason"])
}

type decisionWriterStub struct {
	inserted []models.BackfillDecision
	ctxErr   error
}

func (d *decisionWriterStub) Insert(ctx context.Context, decision *models.BackfillDecision) error {
	d.ctxErr = ctx.Err()
	d.inserted = append(d.inserted, *decision)
	return nil
}

func TestStoreSinkWritesAfterCancellation(t *testing.T) {
	writer := &decisionWriterStub{}
	sink := NewStoreSink(writer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sink.Record(ctx, models.BackfillDecision{WorkItemID: "fp-1", Reason: "RUN_ABORTED"}))
	require.Len(t, writer.inserted, 1)
	assert.NoError(t, writer.ctxErr)
}
