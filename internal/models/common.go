// server/internal/models/common.go
package models

// Risk levels shared by risk points and aggregated route scores.
const (
	RiskLevelLow     = "low"
	RiskLevelMedium  = "medium"
	RiskLevelHigh    = "high"
	RiskLevelUnknown = "unknown"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Place is an address with optionally resolved coordinates.
type Place struct {
	Address string   `bson:"address" json:"address"`
	Lat     *float64 `bson:"lat,omitempty" json:"lat,omitempty"`
	Lng     *float64 `bson:"lng,omitempty" json:"lng,omitempty"`
}

// Location returns the resolved coordinate, if any.
func (p Place) Location() (Location, bool) {
	if p.Lat == nil || p.Lng == nil {
		return Location{}, false
	}
	return Location{Lat: *p.Lat, Lng: *p.Lng}, true
}
