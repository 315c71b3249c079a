// Package estimator turns a waypoint sequence into per-category risk points.
package estimator

import (
	"context"
	"math/rand"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/maps"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/weather"

	"go.uber.org/zap"
)

// Estimator produces the risk points of one category for a route.
type Estimator interface {
	Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error)
}

// Func adapts a plain function to Estimator.
type Func func(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error)

func (f Func) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	return f(ctx, waypoints)
}

// Observer yields one weather observation per point, or none when no sample succeeded.
type Observer interface {
	Observe(ctx context.Context, points []models.Location) ([]weather.Observation, error)
}

// ElevationSource resolves elevations for a list of points.
type ElevationSource interface {
	Elevation(ctx context.Context, points []models.Location) ([]maps.ElevationSample, error)
}

// Entry binds an estimator to the RiskData list it fills.
type Entry struct {
	Category  models.Category
	Estimator Estimator
}

// minSafetyPoints is the shortest route the geometry-based estimators look at.
const minSafetyPoints = 3

// RequirePoints returns no points for routes shorter than n without calling e.
func RequirePoints(n int, e Estimator) Estimator {
	return Func(func(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
		if len(waypoints) < n {
			return []models.RiskPoint{}, nil
		}
		return e.Estimate(ctx, waypoints)
	})
}

// Deps are the collaborators the default estimator set needs.
type Deps struct {
	Weather   Observer
	Traffic   TrafficSource
	Elevation ElevationSource
	Logger    *zap.Logger
}

// Default returns the estimators in pipeline order: accident, weather, then
// the route-safety group (elevation, blind spot, network, eco zone).
func Default(d Deps) []Entry {
	return []Entry{
		{models.CategoryAccident, &Accident{Weather: d.Weather, Traffic: d.Traffic, Logger: d.Logger}},
		{models.CategoryWeather, &Weather{Observer: d.Weather}},
		{models.CategoryElevation, RequirePoints(minSafetyPoints, &Elevation{Source: d.Elevation})},
		{models.CategoryBlindSpot, RequirePoints(minSafetyPoints, &BlindSpot{Elevation: d.Elevation})},
		{models.CategoryNetwork, RequirePoints(minSafetyPoints, Network{})},
		{models.CategoryEcoZone, RequirePoints(minSafetyPoints, EcoZone{})},
	}
}

func levelFor(p, medium, high float64) string {
	switch {
	case p >= high:
		return models.RiskLevelHigh
	case p >= medium:
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}

func seeded(p models.Location) *rand.Rand {
	return rand.New(rand.NewSource(geo.CoordSeed(p, 10000)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ptr(v float64) *float64 { return &v }

// weightedChoice draws an index from weights that sum to 1.
func weightedChoice(rng *rand.Rand, weights []float64) int {
	r := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(weights) - 1
}
