package service

import (
	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

// ScopeIndex holds an assignment's zones and wards as sets. Build it once and
// reuse it when testing many work items against the same assignment.
type ScopeIndex struct {
	zones map[string]struct{}
	wards map[string]struct{}
}

// NewScopeIndex indexes a. A nil assignment yields an index that contains nothing.
func NewScopeIndex(a *models.ScopeAssignment) ScopeIndex {
	idx := ScopeIndex{}
	if a == nil {
		return idx
	}
	idx.zones = toSet(a.ZoneIDs)
	idx.wards = toSet(a.WardIDs)
	return idx
}

// Contains reports whether both ids are inside the indexed scope. Missing ids
// are never in scope.
func (i ScopeIndex) Contains(zoneID, wardID *string) bool {
	if zoneID == nil || wardID == nil || *zoneID == "" || *wardID == "" {
		return false
	}
	if _, ok := i.zones[*zoneID]; !ok {
		return false
	}
	_, ok := i.wards[*wardID]
	return ok
}

// Empty reports whether the index grants no zone or no ward.
func (i ScopeIndex) Empty() bool {
	return len(i.zones) == 0 || len(i.wards) == 0
}

// IsInScope reports whether a work item located at zoneID/wardID falls inside a.
func IsInScope(zoneID, wardID *string, a *models.ScopeAssignment) bool {
	if a == nil {
		return false
	}
	return NewScopeIndex(a).Contains(zoneID, wardID)
}

// DerivePendingCountForReviewer counts items awaiting QC that lie inside a.
func DerivePendingCountForReviewer(items []models.FeederPoint, a *models.ScopeAssignment) int {
	if a == nil {
		return 0
	}
	idx := NewScopeIndex(a)
	if idx.Empty() {
		return 0
	}
	count := 0
	for _, item := range items {
		if item.Status == models.StatusPendingQC && idx.Contains(item.ZoneID, item.WardID) {
			count++
		}
	}
	return count
}

// InferLocationFromScope picks the location a submitter's work item should
// get: the first assigned zone and the first assigned ward, in assignment
// order. The pair is not checked against the hierarchy here.
func InferLocationFromScope(a *models.ScopeAssignment) (models.Location, error) {
	if a == nil {
		return models.Location{}, appErrors.ErrScopeNotFound
	}
	zoneID := firstNonEmpty(a.ZoneIDs)
	wardID := firstNonEmpty(a.WardIDs)
	if zoneID == "" || wardID == "" {
		return models.Location{}, appErrors.Clone(appErrors.ErrUnresolvableScope, unresolvableDetail(zoneID, wardID))
	}
	return models.Location{ZoneID: zoneID, WardID: wardID}, nil
}

// MergeAssignments unions the zones and wards of several assignments,
// keeping first-seen order. The result is nil when nothing is merged.
func MergeAssignments(assignments ...*models.ScopeAssignment) *models.ScopeAssignment {
	var merged *models.ScopeAssignment
	seenZones := map[string]struct{}{}
	seenWards := map[string]struct{}{}
	for _, a := range assignments {
		if a == nil {
			continue
		}
		if merged == nil {
			merged = &models.ScopeAssignment{UserID: a.UserID, CityID: a.CityID, ModuleID: a.ModuleID, Role: a.Role}
			merged.Normalize()
		}
		merged.ZoneIDs = appendUnique(merged.ZoneIDs, a.ZoneIDs, seenZones)
		merged.WardIDs = appendUnique(merged.WardIDs, a.WardIDs, seenWards)
	}
	return merged
}

func unresolvableDetail(zoneID, wardID string) string {
	switch {
	case zoneID == "" && wardID == "":
		return "scope has no zones and no wards"
	case zoneID == "":
		return "scope has no zones"
	default:
		return "scope has no wards"
	}
}

func firstNonEmpty(ids []string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func appendUnique(dst, src []string, seen map[string]struct{}) []string {
	for _, id := range src {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		dst = append(dst, id)
	}
	return dst
}
