// server/internal/models/risk_data.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category names a risk point list inside RiskData. The value is the document field.
type Category string

const (
	CategoryAccident  Category = "accident_risks"
	CategoryWeather   Category = "weather_hazards"
	CategoryElevation Category = "elevation_risks"
	CategoryBlindSpot Category = "blind_spots"
	CategoryNetwork   Category = "network_coverage"
	CategoryEcoZone   Category = "eco_sensitive_zones"
)

// Categories lists every hazard category in pipeline order.
var Categories = []Category{
	CategoryAccident,
	CategoryWeather,
	CategoryElevation,
	CategoryBlindSpot,
	CategoryNetwork,
	CategoryEcoZone,
}

// Short returns the label used by analytics payloads ("accident", "blind_spot", ...).
func (c Category) Short() string {
	switch c {
	case CategoryAccident:
		return "accident"
	case CategoryWeather:
		return "weather"
	case CategoryElevation:
		return "elevation"
	case CategoryBlindSpot:
		return "blind_spot"
	case CategoryNetwork:
		return "network"
	case CategoryEcoZone:
		return "eco_zone"
	}
	return string(c)
}

type RiskFactor struct {
	Factor      string `bson:"factor" json:"factor"`
	Description string `bson:"description" json:"description"`
}

type HazardType struct {
	Type        string `bson:"type" json:"type"`
	Description string `bson:"description" json:"description"`
}

// RoadFeatures are the inputs behind a blind-spot estimate.
type RoadFeatures struct {
	RoadWidth      float64 `bson:"road_width" json:"road_width"`
	Curvature      float64 `bson:"curvature" json:"curvature"`
	Gradient       float64 `bson:"gradient" json:"gradient"`
	Visibility     float64 `bson:"visibility" json:"visibility"`
	IsIntersection bool    `bson:"is_intersection" json:"is_intersection"`
}

// RiskPoint is one annotated location. Category-specific fields are optional.
type RiskPoint struct {
	Location    Location     `bson:"location" json:"location"`
	RiskLevel   string       `bson:"risk_level" json:"risk_level"`
	Probability *float64     `bson:"probability,omitempty" json:"probability,omitempty"`
	Factors     []RiskFactor `bson:"factors,omitempty" json:"factors,omitempty"`

	// elevation
	RiskType  string   `bson:"risk_type,omitempty" json:"risk_type,omitempty"`
	Gradient  *float64 `bson:"gradient,omitempty" json:"gradient,omitempty"`
	Elevation *float64 `bson:"elevation,omitempty" json:"elevation,omitempty"`
	Distance  *float64 `bson:"distance,omitempty" json:"distance,omitempty"`

	// blind spot
	Features *RoadFeatures `bson:"features,omitempty" json:"features,omitempty"`

	// network
	SignalStrength *float64 `bson:"signal_strength,omitempty" json:"signal_strength,omitempty"`
	NetworkType    string   `bson:"network_type,omitempty" json:"network_type,omitempty"`
	Provider       string   `bson:"provider,omitempty" json:"provider,omitempty"`

	// eco zone
	ZoneName     string   `bson:"zone_name,omitempty" json:"zone_name,omitempty"`
	ZoneType     string   `bson:"zone_type,omitempty" json:"zone_type,omitempty"`
	Restrictions []string `bson:"restrictions,omitempty" json:"restrictions,omitempty"`

	// weather
	WeatherCondition string       `bson:"weather_condition,omitempty" json:"weather_condition,omitempty"`
	Temperature      *float64     `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Visibility       *float64     `bson:"visibility,omitempty" json:"visibility,omitempty"`
	WindSpeed        *float64     `bson:"wind_speed,omitempty" json:"wind_speed,omitempty"`
	Precipitation    *float64     `bson:"precipitation,omitempty" json:"precipitation,omitempty"`
	HazardTypes      []HazardType `bson:"hazard_types,omitempty" json:"hazard_types,omitempty"`
}

// Facility categories in nearby_facilities.
const (
	FacilityHospitals      = "hospitals"
	FacilityPoliceStations = "police_stations"
	FacilityFuelStations   = "fuel_stations"
	FacilityRestAreas      = "rest_areas"
	FacilityRepairShops    = "repair_shops"
)

// FacilityCategories lists nearby_facilities keys in a stable order.
var FacilityCategories = []string{
	FacilityHospitals,
	FacilityPoliceStations,
	FacilityFuelStations,
	FacilityRestAreas,
	FacilityRepairShops,
}

type Facility struct {
	PlaceID  string   `bson:"place_id" json:"place_id"`
	Name     string   `bson:"name" json:"name"`
	Vicinity string   `bson:"vicinity" json:"vicinity"`
	Location Location `bson:"location" json:"location"`
	// Distance is in meters from the sampled waypoint that found it.
	Distance float64 `bson:"distance" json:"distance"`
}

type NearbyFacilities map[string][]Facility

// NewNearbyFacilities returns a map with every category present and empty.
func NewNearbyFacilities() NearbyFacilities {
	nf := make(NearbyFacilities, len(FacilityCategories))
	for _, c := range FacilityCategories {
		nf[c] = []Facility{}
	}
	return nf
}

type RiskData struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RouteID           string             `bson:"route_id" json:"route_id"`
	AccidentRisks     []RiskPoint        `bson:"accident_risks" json:"accident_risks"`
	WeatherHazards    []RiskPoint        `bson:"weather_hazards" json:"weather_hazards"`
	ElevationRisks    []RiskPoint        `bson:"elevation_risks" json:"elevation_risks"`
	BlindSpots        []RiskPoint        `bson:"blind_spots" json:"blind_spots"`
	NetworkCoverage   []RiskPoint        `bson:"network_coverage" json:"network_coverage"`
	EcoSensitiveZones []RiskPoint        `bson:"eco_sensitive_zones" json:"eco_sensitive_zones"`
	NearbyFacilities  NearbyFacilities   `bson:"nearby_facilities" json:"nearby_facilities"`
	OverallRiskScore  *float64           `bson:"overall_risk_score" json:"overall_risk_score"`
	RiskLevel         *string            `bson:"risk_level" json:"risk_level"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	LastUpdated       time.Time          `bson:"last_updated" json:"last_updated"`
}

// NewRiskData returns an empty record for routeID.
func NewRiskData(routeID string, now time.Time) *RiskData {
	return &RiskData{
		RouteID:           routeID,
		AccidentRisks:     []RiskPoint{},
		WeatherHazards:    []RiskPoint{},
		ElevationRisks:    []RiskPoint{},
		BlindSpots:        []RiskPoint{},
		NetworkCoverage:   []RiskPoint{},
		EcoSensitiveZones: []RiskPoint{},
		NearbyFacilities:  NewNearbyFacilities(),
		CreatedAt:         now,
		LastUpdated:       now,
	}
}

// Points returns the list stored for category c.
func (rd *RiskData) Points(c Category) []RiskPoint {
	switch c {
	case CategoryAccident:
		return rd.AccidentRisks
	case CategoryWeather:
		return rd.WeatherHazards
	case CategoryElevation:
		return rd.ElevationRisks
	case CategoryBlindSpot:
		return rd.BlindSpots
	case CategoryNetwork:
		return rd.NetworkCoverage
	case CategoryEcoZone:
		return rd.EcoSensitiveZones
	}
	return nil
}

// SetPoints replaces the list stored for category c.
func (rd *RiskData) SetPoints(c Category, points []RiskPoint) {
	if points == nil {
		points = []RiskPoint{}
	}
	switch c {
	case CategoryAccident:
		rd.AccidentRisks = points
	case CategoryWeather:
		rd.WeatherHazards = points
	case CategoryElevation:
		rd.ElevationRisks = points
	case CategoryBlindSpot:
		rd.BlindSpots = points
	case CategoryNetwork:
		rd.NetworkCoverage = points
	case CategoryEcoZone:
		rd.EcoSensitiveZones = points
	}
}
