package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

type wardReader interface {
	FindWard(ctx context.Context, exec sqlx.QueryerContext, wardID string) (*models.GeoNode, error)
}

// HierarchyService answers ward -> zone questions against the immutable city
// hierarchy, caching ward parents when a cache is configured.
type HierarchyService struct {
	wards   wardReader
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewHierarchyService constructs the service. cache and metrics may be nil.
func NewHierarchyService(wards wardReader, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *HierarchyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyService{wards: wards, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

func wardCacheKey(wardID string) string {
	return "ward:" + wardID
}

// WardParent returns the ward's zone and city, or nil when wardID is not a ward.
// A nil exec reads through the repository's own pool.
func (s *HierarchyService) WardParent(ctx context.Context, exec sqlx.QueryerContext, wardID string) (*models.WardParent, error) {
	var cached models.WardParent
	if s.cache.Get(ctx, wardCacheKey(wardID), &cached) {
		return &cached, nil
	}

	start := time.Now()
	node, err := s.wards.FindWard(ctx, exec, wardID)
	s.metrics.ObserveDBQuery("find_ward", time.Since(start))
	if err != nil {
		return nil, err
	}
	if node == nil || node.ParentID == nil {
		return nil, nil
	}

	parent := &models.WardParent{WardID: node.ID, ZoneID: *node.ParentID, CityID: node.CityID}
	s.cache.Set(ctx, wardCacheKey(wardID), parent, s.ttl)
	return parent, nil
}

// ValidateLocation checks that loc's ward exists, sits under loc's zone and
// belongs to cityID. Violations are ErrInconsistentHierarchy; lookup failures
// are returned as they are. Cache misses are read through exec.
func (s *HierarchyService) ValidateLocation(ctx context.Context, exec sqlx.QueryerContext, cityID string, loc models.Location) error {
	parent, err := s.WardParent(ctx, exec, loc.WardID)
	if err != nil {
		return err
	}
	switch {
	case parent == nil:
		return appErrors.Clone(appErrors.ErrInconsistentHierarchy, fmt.Sprintf("ward %s not found in hierarchy", loc.WardID))
	case parent.ZoneID != loc.ZoneID:
		return appErrors.Clone(appErrors.ErrInconsistentHierarchy, fmt.Sprintf("ward %s belongs to zone %s, not %s", loc.WardID, parent.ZoneID, loc.ZoneID))
	case cityID != "" && parent.CityID != cityID:
		return appErrors.Clone(appErrors.ErrInconsistentHierarchy, fmt.Sprintf("ward %s belongs to city %s, not %s", loc.WardID, parent.CityID, cityID))
	}
	return nil
}

// Invalidate drops cached ward parents after hierarchy edits.
func (s *HierarchyService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, wardCacheKey("*"))
}
