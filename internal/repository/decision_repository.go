package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hms-scope/internal/models"
)

// DecisionRepository persists backfill decisions for later audit.
type DecisionRepository struct {
	db *sqlx.DB
}

// NewDecisionRepository constructs the repository.
func NewDecisionRepository(db *sqlx.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Insert stores one decision.
func (r *DecisionRepository) Insert(ctx context.Context, decision *models.BackfillDecision) error {
	if decision.ID == "" {
		decision.ID = uuid.NewString()
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}
	const query = `INSERT INTO "ScopeBackfillAudit" (id, "runId", kind, "workItemId", "cityId", "requestedById", decision, reason, detail, "zoneId", "wardId", "decidedAt")
		VALUES (:id, :runId, :kind, :workItemId, :cityId, :requestedById, :decision, :reason, :detail, :zoneId, :wardId, :decidedAt)`
	if _, err := r.db.NamedExecContext(ctx, query, decision); err != nil {
		return fmt.Errorf("insert backfill decision: %w", err)
	}
	return nil
}

// ListByRun returns the decisions recorded for a run in processing order.
func (r *DecisionRepository) ListByRun(ctx context.Context, runID string) ([]models.BackfillDecision, error) {
	const query = `SELECT id, "runId", kind, "workItemId", "cityId", "requestedById", decision, reason, detail, "zoneId", "wardId", "decidedAt"
FROM "ScopeBackfillAudit"
WHERE "runId" = $1
ORDER BY "decidedAt" ASC, id ASC`
	var decisions []models.BackfillDecision
	if err := r.db.SelectContext(ctx, &decisions, query, runID); err != nil {
		return nil, fmt.Errorf("list backfill decisions: %w", err)
	}
	return decisions, nil
}
