package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

type qcAssignmentReader interface {
	FindCityAssignment(ctx context.Context, exec sqlx.QueryerContext, userID, cityID string, role models.ScopeRole) (*models.ScopeAssignment, error)
	ListModuleAssignments(ctx context.Context, userID, cityID, moduleID string, role models.ScopeRole) ([]models.ScopeAssignment, error)
	ListModuleReviewers(ctx context.Context, cityID, moduleID string) ([]models.ReviewerAssignment, error)
}

type moduleLookup interface {
	FindIDByName(ctx context.Context, name string) (string, error)
}

type pendingItemReader interface {
	ListPending(ctx context.Context, kind models.WorkItemKind, cityID string) ([]models.FeederPoint, error)
	Count(ctx context.Context, filter models.WorkItemCountFilter) (int, error)
}

// QCScopeService resolves what QC reviewers can see and reports pending work
// that falls outside every reviewer's scope.
type QCScopeService struct {
	assignments qcAssignmentReader
	modules     moduleLookup
	items       pendingItemReader
	logger      *zap.Logger
}

// NewQCScopeService constructs the service.
func NewQCScopeService(assignments qcAssignmentReader, modules moduleLookup, items pendingItemReader, logger *zap.Logger) *QCScopeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QCScopeService{assignments: assignments, modules: modules, items: items, logger: logger}
}

// ResolveQCScope unions the user's module-level QC assignments. When that
// leaves no zones or no wards, the city-level QC assignment is merged in. The
// result is never nil; an unassigned user gets an empty scope.
func (s *QCScopeService) ResolveQCScope(ctx context.Context, userID, cityID, moduleID string) (*models.ScopeAssignment, error) {
	moduleAssignments, err := s.assignments.ListModuleAssignments(ctx, userID, cityID, moduleID, models.ScopeRoleQC)
	if err != nil {
		return nil, err
	}
	parts := make([]*models.ScopeAssignment, 0, len(moduleAssignments)+1)
	for i := range moduleAssignments {
		parts = append(parts, &moduleAssignments[i])
	}

	merged := MergeAssignments(parts...)
	if !merged.HasScope() {
		city, err := s.assignments.FindCityAssignment(ctx, nil, userID, cityID, models.ScopeRoleQC)
		if err != nil {
			return nil, err
		}
		merged = MergeAssignments(append(parts, city)...)
	}
	if merged == nil {
		merged = &models.ScopeAssignment{UserID: userID, CityID: cityID, Role: models.ScopeRoleQC}
	}
	if moduleID != "" {
		merged.ModuleID = &moduleID
	}
	merged.Normalize()
	return merged, nil
}

// PendingReport lists every QC reviewer of moduleName in the city with the
// number of pending items inside their scope. Each reviewer's count is also
// tallied from the pending list; a mismatch is logged and the counted value
// is reported.
func (s *QCScopeService) PendingReport(ctx context.Context, kind models.WorkItemKind, cityID, moduleName string) (*models.PendingReport, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown work item kind %q", kind))
	}
	if strings.TrimSpace(cityID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "city id is required")
	}

	moduleID, err := s.modules.FindIDByName(ctx, moduleName)
	if err != nil {
		return nil, err
	}

	total, err := s.items.Count(ctx, models.WorkItemCountFilter{Kind: kind, CityID: cityID})
	if err != nil {
		return nil, err
	}
	pending, err := s.items.ListPending(ctx, kind, cityID)
	if err != nil {
		return nil, err
	}
	reviewerRows, err := s.assignments.ListModuleReviewers(ctx, cityID, moduleID)
	if err != nil {
		return nil, err
	}

	report := &models.PendingReport{
		Kind:         kind,
		CityID:       cityID,
		ModuleName:   moduleName,
		ModuleID:     moduleID,
		TotalItems:   total,
		TotalPending: len(pending),
		Reviewers:    []models.ReviewerPending{},
	}

	indexes := make([]ScopeIndex, 0, len(reviewerRows))
	seen := map[string]struct{}{}
	for _, row := range reviewerRows {
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}

		scope, err := s.ResolveQCScope(ctx, row.UserID, cityID, moduleID)
		if err != nil {
			return nil, err
		}
		count, err := s.items.Count(ctx, models.WorkItemCountFilter{
			Kind:    kind,
			CityID:  cityID,
			Status:  models.StatusPendingQC,
			ZoneIDs: scope.ZoneIDs,
			WardIDs: scope.WardIDs,
			Scoped:  true,
		})
		if err != nil {
			return nil, err
		}
		if derived := DerivePendingCountForReviewer(pending, scope); derived != count {
			// items changed between the two reads
			s.logger.Warn("reviewer pending count disagrees with pending list",
				zap.String("city_id", cityID),
				zap.String("qc_id", row.UserID),
				zap.Int("counted", count),
				zap.Int("listed", derived),
			)
		}
		indexes = append(indexes, NewScopeIndex(scope))
		report.Reviewers = append(report.Reviewers, models.ReviewerPending{
			UserID:         row.UserID,
			Email:          row.Email,
			ZoneIDs:        scope.ZoneIDs,
			WardIDs:        scope.WardIDs,
			PendingInScope: count,
		})
	}

	for _, item := range pending {
		if item.MissingLocation() {
			report.PendingMissingLocation++
			report.PendingUnreachable++
			continue
		}
		if !anyContains(indexes, item.ZoneID, item.WardID) {
			report.PendingUnreachable++
		}
	}

	s.logger.Debug("qc pending report built",
		zap.String("city_id", cityID),
		zap.String("module", moduleName),
		zap.Int("reviewers", len(report.Reviewers)),
		zap.Int("pending", report.TotalPending),
		zap.Int("unreachable", report.PendingUnreachable),
	)
	return report, nil
}

func anyContains(indexes []ScopeIndex, zoneID, wardID *string) bool {
	for _, idx := range indexes {
		if idx.Contains(zoneID, wardID) {
			return true
		}
	}
	return false
}
