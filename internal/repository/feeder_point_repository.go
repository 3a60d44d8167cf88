package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

const workItemColumns = `id, "cityId", "zoneId", "wardId", "requestedById", status, "createdAt", "updatedAt"`

// FeederPointRepository reads and repairs field-reported work items. The kind
// argument picks the table; feeder points and litter bins share the columns.
type FeederPointRepository struct {
	db *sqlx.DB
}

// NewFeederPointRepository constructs the repository.
func NewFeederPointRepository(db *sqlx.DB) *FeederPointRepository {
	return &FeederPointRepository{db: db}
}

// WorkItemCursor streams work items from an open result set. It is single
// pass and must be closed.
type WorkItemCursor struct {
	rows *sqlx.Rows
	item models.FeederPoint
	err  error
}

// Next advances to the next item.
func (c *WorkItemCursor) Next() bool {
	if c == nil || c.rows == nil || c.err != nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}
	var item models.FeederPoint
	if err := c.rows.StructScan(&item); err != nil {
		c.err = fmt.Errorf("scan work item: %w", err)
		return false
	}
	c.item = item
	return true
}

// Item returns the current item.
func (c *WorkItemCursor) Item() models.FeederPoint {
	return c.item
}

// Err returns the first error hit while iterating.
func (c *WorkItemCursor) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// Close releases the result set.
func (c *WorkItemCursor) Close() error {
	if c == nil || c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

// ListMissingLocation opens a cursor over items whose zone or ward is NULL,
// oldest first, optionally restricted to a city.
func (r *FeederPointRepository) ListMissingLocation(ctx context.Context, kind models.WorkItemKind, cityID string) (*WorkItemCursor, error) {
	table, err := kind.Table()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ("zoneId" IS NULL OR "wardId" IS NULL)`, workItemColumns, table)
	args := []interface{}{}
	if cityID != "" {
		query += ` AND "cityId" = $1`
		args = append(args, cityID)
	}
	query += ` ORDER BY "createdAt" ASC, id ASC`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s missing location: %w", kind, err)
	}
	return &WorkItemCursor{rows: rows}, nil
}

// ListPending returns the city's items awaiting QC.
func (r *FeederPointRepository) ListPending(ctx context.Context, kind models.WorkItemKind, cityID string) ([]models.FeederPoint, error) {
	table, err := kind.Table()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE "cityId" = $1 AND status = $2 ORDER BY "createdAt" DESC`, workItemColumns, table)
	var items []models.FeederPoint
	if err := r.db.SelectContext(ctx, &items, query, cityID, models.StatusPendingQC); err != nil {
		return nil, fmt.Errorf("list pending %s: %w", kind, err)
	}
	return items, nil
}

// Count returns the number of items matching filter. Zone and ward filters
// test membership of the item's ids in the given sets.
func (r *FeederPointRepository) Count(ctx context.Context, filter models.WorkItemCountFilter) (int, error) {
	table, err := filter.Kind.Table()
	if err != nil {
		return 0, err
	}
	if filter.Scoped && (len(filter.ZoneIDs) == 0 || len(filter.WardIDs) == 0) {
		return 0, nil
	}

	where := []string{}
	args := []interface{}{}
	if filter.CityID != "" {
		args = append(args, filter.CityID)
		where = append(where, fmt.Sprintf(`"cityId" = $%d`, len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf(`status = $%d`, len(args)))
	}
	if len(filter.ZoneIDs) > 0 {
		args = append(args, pq.Array(filter.ZoneIDs))
		where = append(where, fmt.Sprintf(`"zoneId" = ANY($%d)`, len(args)))
	}
	if len(filter.WardIDs) > 0 {
		args = append(args, pq.Array(filter.WardIDs))
		where = append(where, fmt.Sprintf(`"wardId" = ANY($%d)`, len(args)))
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", filter.Kind, err)
	}
	return count, nil
}

// SetLocation writes zone and ward together. The update only applies while the
// item still lacks a location; otherwise ErrLocationAlreadySet is returned.
func (r *FeederPointRepository) SetLocation(ctx context.Context, exec sqlx.ExecerContext, kind models.WorkItemKind, id string, loc models.Location, updatedAt time.Time) error {
	table, err := kind.Table()
	if err != nil {
		return err
	}
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf(`UPDATE %s SET "zoneId" = $1, "wardId" = $2, "updatedAt" = $3 WHERE id = $4 AND ("zoneId" IS NULL OR "wardId" IS NULL)`, table)
	result, err := exec.ExecContext(ctx, query, loc.ZoneID, loc.WardID, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set %s location: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s location rows: %w", kind, err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrLocationAlreadySet, fmt.Sprintf("%s %s already has a location", kind, id))
	}
	return nil
}
