package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
)

// DecisionSink receives every backfill decision as it is made. Sink failures
// are logged by the engine and never change the decision.
type DecisionSink interface {
	Record(ctx context.Context, d models.BackfillDecision) error
}

// LogSink writes decisions as structured audit records.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a sink on the audit logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Record implements DecisionSink.
func (s *LogSink) Record(_ context.Context, d models.BackfillDecision) error {
	fields := []zap.Field{
		zap.String("event", "scope_backfill.decision"),
		zap.String("run_id", d.RunID),
		zap.String("kind", string(d.Kind)),
		zap.String("work_item_id", d.WorkItemID),
		zap.String("city_id", d.CityID),
		zap.String("decision", string(d.Decision)),
	}
	if d.RequestedByID != nil {
		fields = append(fields, zap.String("requested_by_id", *d.RequestedByID))
	}
	if d.ZoneID != nil && d.WardID != nil {
		fields = append(fields, zap.String("zone_id", *d.ZoneID), zap.String("ward_id", *d.WardID))
	}
	if d.Reason != "" {
		fields = append(fields, zap.String("reason", d.Reason), zap.String("detail", d.Detail))
	}

	switch d.Reason {
	case "":
		s.logger.Info("work item location updated", fields...)
	case "INCONSISTENT_HIERARCHY", "PERSISTENCE_FAILURE":
		s.logger.Warn("work item flagged", fields...)
	default:
		s.logger.Info("work item skipped", fields...)
	}
	return nil
}

type decisionWriter interface {
	Insert(ctx context.Context, decision *models.BackfillDecision) error
}

// StoreSink persists decisions to the audit table.
type StoreSink struct {
	repo decisionWriter
}

// NewStoreSink wraps a decision repository.
func NewStoreSink(repo decisionWriter) *StoreSink {
	return &StoreSink{repo: repo}
}

// Record implements DecisionSink. The write is detached from cancellation so
// decisions made while a run aborts are still kept.
func (s *StoreSink) Record(ctx context.Context, d models.BackfillDecision) error {
	return s.repo.Insert(context.WithoutCancel(ctx), &d)
}
