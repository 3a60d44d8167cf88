package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hms-scope/internal/models"
)

// HierarchyRepository reads the city zone/ward tree.
type HierarchyRepository struct {
	db *sqlx.DB
}

// NewHierarchyRepository constructs the repository.
func NewHierarchyRepository(db *sqlx.DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// FindWard returns the ward node, or nil when wardID is not a ward. exec lets
// callers read inside their own transaction.
func (r *HierarchyRepository) FindWard(ctx context.Context, exec sqlx.QueryerContext, wardID string) (*models.GeoNode, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT id, "cityId", "parentId", level, name FROM "GeoNode" WHERE id = $1 AND level = $2`
	var node models.GeoNode
	if err := sqlx.GetContext(ctx, exec, &node, query, wardID, string(models.GeoLevelWard)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ward %s: %w", wardID, err)
	}
	return &node, nil
}
