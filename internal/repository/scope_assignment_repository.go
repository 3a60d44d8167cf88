package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hms-scope/internal/models"
)

// ScopeAssignmentRepository reads city- and module-level scope assignments.
type ScopeAssignmentRepository struct {
	db *sqlx.DB
}

// NewScopeAssignmentRepository constructs the repository.
func NewScopeAssignmentRepository(db *sqlx.DB) *ScopeAssignmentRepository {
	return &ScopeAssignmentRepository{db: db}
}

// FindCityAssignment returns the user's city-level assignment for role, or nil
// when none exists. exec lets callers read inside their own transaction.
func (r *ScopeAssignmentRepository) FindCityAssignment(ctx context.Context, exec sqlx.QueryerContext, userID, cityID string, role models.ScopeRole) (*models.ScopeAssignment, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT "userId", "cityId", role, "zoneIds", "wardIds"
FROM "UserCity"
WHERE "userId" = $1 AND "cityId" = $2 AND role = $3
ORDER BY id ASC
LIMIT 1`
	var assignment models.ScopeAssignment
	if err := sqlx.GetContext(ctx, exec, &assignment, query, userID, cityID, string(role)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find city scope assignment: %w", err)
	}
	assignment.Normalize()
	return &assignment, nil
}

// ListModuleAssignments returns every module-level assignment for the user in
// the city, oldest first.
func (r *ScopeAssignmentRepository) ListModuleAssignments(ctx context.Context, userID, cityID, moduleID string, role models.ScopeRole) ([]models.ScopeAssignment, error) {
	const query = `SELECT "userId", "cityId", "moduleId", role, "zoneIds", "wardIds"
FROM "UserModuleRole"
WHERE "userId" = $1 AND "cityId" = $2 AND "moduleId" = $3 AND role = $4
ORDER BY id ASC`
	var assignments []models.ScopeAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID, cityID, moduleID, string(role)); err != nil {
		return nil, fmt.Errorf("list module scope assignments: %w", err)
	}
	for i := range assignments {
		assignments[i].Normalize()
	}
	return assignments, nil
}

// ListModuleReviewers returns the QC assignments of a module in a city with reviewer emails.
func (r *ScopeAssignmentRepository) ListModuleReviewers(ctx context.Context, cityID, moduleID string) ([]models.ReviewerAssignment, error) {
	const query = `SELECT umr."userId", umr."cityId", umr."moduleId", umr.role, umr."zoneIds", umr."wardIds", u.email
FROM "UserModuleRole" umr
JOIN "User" u ON u.id = umr."userId"
WHERE umr."cityId" = $1 AND umr."moduleId" = $2 AND umr.role = $3
ORDER BY u.email ASC`
	var reviewers []models.ReviewerAssignment
	if err := r.db.SelectContext(ctx, &reviewers, query, cityID, moduleID, string(models.ScopeRoleQC)); err != nil {
		return nil, fmt.Errorf("list module reviewers: %w", err)
	}
	for i := range reviewers {
		reviewers[i].Normalize()
	}
	return reviewers, nil
}
