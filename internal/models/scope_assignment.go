package models

import "github.com/lib/pq"

// ScopeRole is the role a scope assignment grants.
type ScopeRole string

const (
	ScopeRoleEmployee ScopeRole = "EMPLOYEE"
	ScopeRoleQC       ScopeRole = "QC"
)

// ScopeAssignment binds a user to the zones and wards they may act within for
// one city and role, optionally narrowed to a module. ZoneIDs and WardIDs keep
// the order in which they were assigned; backfill inference depends on it.
type ScopeAssignment struct {
	UserID   string         `db:"userId" json:"userId"`
	CityID   string         `db:"cityId" json:"cityId"`
	ModuleID *string        `db:"moduleId" json:"moduleId,omitempty"`
	Role     ScopeRole      `db:"role" json:"role"`
	ZoneIDs  pq.StringArray `db:"zoneIds" json:"zoneIds"`
	WardIDs  pq.StringArray `db:"wardIds" json:"wardIds"`
}

// Normalize replaces NULL arrays with empty ones.
func (a *ScopeAssignment) Normalize() {
	if a == nil {
		return
	}
	if a.ZoneIDs == nil {
		a.ZoneIDs = pq.StringArray{}
	}
	if a.WardIDs == nil {
		a.WardIDs = pq.StringArray{}
	}
}

// HasScope reports whether the assignment grants at least one zone and one ward.
func (a *ScopeAssignment) HasScope() bool {
	return a != nil && len(a.ZoneIDs) > 0 && len(a.WardIDs) > 0
}

// ReviewerAssignment is a module-level QC assignment joined with the reviewer's email.
type ReviewerAssignment struct {
	ScopeAssignment
	Email string `db:"email" json:"email"`
}
