package models

// GeoLevel enumerates the levels of the city hierarchy.
type GeoLevel string

const (
	GeoLevelZone GeoLevel = "ZONE"
	GeoLevelWard GeoLevel = "WARD"
	GeoLevelArea GeoLevel = "AREA"
	GeoLevelBeat GeoLevel = "BEAT"
)

// GeoNode is a node of a city's zone/ward/area/beat tree. A ward's parent is
// its zone; zones have no parent.
type GeoNode struct {
	ID       string   `db:"id" json:"id"`
	CityID   string   `db:"cityId" json:"cityId"`
	ParentID *string  `db:"parentId" json:"parentId,omitempty"`
	Level    GeoLevel `db:"level" json:"level"`
	Name     string   `db:"name" json:"name"`
}

// WardParent is the cached projection of a ward used for hierarchy checks.
type WardParent struct {
	WardID string `json:"wardId"`
	ZoneID string `json:"zoneId"`
	CityID string `json:"cityId"`
}
