package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

// ModuleRepository resolves functional modules such as TASKFORCE.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs the repository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// FindIDByName returns the module id for name.
func (r *ModuleRepository) FindIDByName(ctx context.Context, name string) (string, error) {
	var id string
	if err := r.db.GetContext(ctx, &id, `SELECT id FROM "Module" WHERE name = $1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("module %s not found", name))
		}
		return "", fmt.Errorf("find module %s: %w", name, err)
	}
	return id, nil
}
