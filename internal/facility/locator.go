// Package facility finds emergency and service facilities near a route.
package facility

import (
	"context"
	"sync"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/maps"
	"journey-risk-api-server/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Radii are the search radii in metres, smallest first.
var Radii = []int{1000, 5000, 10000}

// PlaceTypes maps a nearby_facilities key to the places type searched for it.
var PlaceTypes = map[string]string{
	models.FacilityHospitals:      "hospital",
	models.FacilityPoliceStations: "police",
	models.FacilityFuelStations:   "gas_station",
	models.FacilityRestAreas:      "restaurant",
	models.FacilityRepairShops:    "car_repair",
}

const lookupConcurrency = 4

// PlaceFinder is the part of maps.Provider the locator needs.
type PlaceFinder interface {
	NearbyPlaces(ctx context.Context, center models.Location, placeType string, radius int) ([]maps.Place, error)
}

type Locator struct {
	places PlaceFinder
	logger *zap.Logger
}

func NewLocator(places PlaceFinder, logger *zap.Logger) *Locator {
	return &Locator{places: places, logger: logger}
}

type lookup struct {
	point    int
	category string
	radius   int
}

// Find queries every category and radius around every max(1, n/10)-th waypoint.
// A place appears at most once across all categories; the first query in
// (point, category, radius) order that returns it wins. Failed lookups are skipped.
func (l *Locator) Find(ctx context.Context, waypoints []models.Location) (models.NearbyFacilities, error) {
	result := models.NewNearbyFacilities()
	if len(waypoints) == 0 {
		return result, nil
	}
	points := geo.Sample(waypoints, geo.StepFor(len(waypoints), 10))

	var lookups []lookup
	for i := range points {
		for _, cat := range models.FacilityCategories {
			for _, r := range Radii {
				lookups = append(lookups, lookup{point: i, category: cat, radius: r})
			}
		}
	}

	found := make([][]maps.Place, len(lookups))
	var mu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, lk := range lookups {
		i, lk := i, lk
		g.Go(func() error {
			places, err := l.places.NearbyPlaces(gctx, points[lk.point], PlaceTypes[lk.category], lk.radius)
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				l.logger.Debug("nearby places lookup failed",
					zap.String("category", lk.category), zap.Int("radius", lk.radius), zap.Error(err))
				return nil
			}
			found[i] = places
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failures > 0 {
		l.logger.Warn("some facility lookups failed", zap.Int("failed", failures), zap.Int("total", len(lookups)))
	}

	seen := make(map[string]bool)
	for i, lk := range lookups {
		for _, p := range found[i] {
			if p.PlaceID == "" || seen[p.PlaceID] {
				continue
			}
			seen[p.PlaceID] = true
			result[lk.category] = append(result[lk.category], models.Facility{
				PlaceID:  p.PlaceID,
				Name:     p.Name,
				Vicinity: p.Vicinity,
				Location: p.Location,
				Distance: geo.Round(p.Distance, 1),
			})
		}
	}
	return result, nil
}
