package models

import (
	"fmt"
	"time"
)

// WorkItemKind selects which field-reported table a backfill or count targets.
type WorkItemKind string

const (
	WorkItemKindFeederPoint WorkItemKind = "feeder_point"
	WorkItemKindLitterBin   WorkItemKind = "litter_bin"
)

var workItemTables = map[WorkItemKind]string{
	WorkItemKindFeederPoint: `"TaskforceFeederPoint"`,
	WorkItemKindLitterBin:   `"LitterBin"`,
}

// Table returns the quoted table name for the kind.
func (k WorkItemKind) Table() (string, error) {
	table, ok := workItemTables[k]
	if !ok {
		return "", fmt.Errorf("unknown work item kind %q", k)
	}
	return table, nil
}

// Valid reports whether the kind maps to a known table.
func (k WorkItemKind) Valid() bool {
	_, ok := workItemTables[k]
	return ok
}

// StatusPendingQC marks work items awaiting QC review.
const StatusPendingQC = "PENDING_QC"

// FeederPoint is a field-reported work item. ZoneID and WardID are nil while
// the item is awaiting location repair.
type FeederPoint struct {
	ID            string    `db:"id" json:"id"`
	CityID        string    `db:"cityId" json:"cityId"`
	ZoneID        *string   `db:"zoneId" json:"zoneId,omitempty"`
	WardID        *string   `db:"wardId" json:"wardId,omitempty"`
	RequestedByID *string   `db:"requestedById" json:"requestedById,omitempty"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `db:"updatedAt" json:"updatedAt"`
}

// MissingLocation reports whether the item still needs a zone or ward.
func (f FeederPoint) MissingLocation() bool {
	return f.ZoneID == nil || f.WardID == nil
}

// Location is a zone/ward pair written together.
type Location struct {
	ZoneID string `json:"zoneId"`
	WardID string `json:"wardId"`
}

// WorkItemCountFilter narrows countWorkItems. With Scoped set, an empty zone
// or ward set means "no visibility" and the count is zero; otherwise empty
// sets are ignored.
type WorkItemCountFilter struct {
	Kind    WorkItemKind
	CityID  string
	Status  string
	ZoneIDs []string
	WardIDs []string
	Scoped  bool
}
