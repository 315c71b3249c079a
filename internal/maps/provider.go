// Package maps resolves directions, elevations and nearby places for a route.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"journey-risk-api-server/internal/models"
)

var ErrNoRoute = errors.New("no route found")

type Directions struct {
	Distance        string            `json:"distance"` // e.g. "12.3 km"
	Duration        string            `json:"duration"` // e.g. "1 hour 5 mins"
	DistanceMeters  int               `json:"distance_meters"`
	DurationSeconds int               `json:"duration_seconds"`
	Polyline        string            `json:"polyline"`
	Waypoints       []models.Location `json:"waypoints"`
	Start           models.Location   `json:"start_location"`
	End             models.Location   `json:"end_location"`
}

type ElevationSample struct {
	Location  models.Location `json:"location"`
	Elevation float64         `json:"elevation"`
}

type Place struct {
	PlaceID  string          `json:"place_id"`
	Name     string          `json:"name"`
	Vicinity string          `json:"vicinity"`
	Location models.Location `json:"location"`
	// Distance from the query point in metres.
	Distance float64 `json:"distance"`
}

// Provider is the mapping backend the pipeline depends on.
type Provider interface {
	Directions(ctx context.Context, origin, destination string) (*Directions, error)
	Elevation(ctx context.Context, points []models.Location) ([]ElevationSample, error)
	NearbyPlaces(ctx context.Context, center models.Location, placeType string, radius int) ([]Place, error)
}

// Query turns a place into the directions query string, preferring coordinates.
func Query(p models.Place) string {
	if loc, ok := p.Location(); ok {
		return fmt.Sprintf("%s,%s", strconv.FormatFloat(loc.Lat, 'f', 6, 64), strconv.FormatFloat(loc.Lng, 'f', 6, 64))
	}
	return p.Address
}

// SampleWaypoints keeps the first, the last and every 10th decoded point.
func SampleWaypoints(points []models.Location) []models.Location {
	out := make([]models.Location, 0, len(points)/10+2)
	for i, p := range points {
		if i == 0 || i == len(points)-1 || i%10 == 0 {
			out = append(out, p)
		}
	}
	return out
}
