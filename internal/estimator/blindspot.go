package estimator

import (
	"context"
	"math"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

const sharpTurnAngle = 135.0

// BlindSpot scores every 20th waypoint plus every sharp turn from synthetic
// road geometry and the point's elevation.
type BlindSpot struct {
	Elevation ElevationSource
}

// BlindSpotCandidates returns every 20th point followed by turns sharper than
// 135 degrees, without duplicates.
func BlindSpotCandidates(points []models.Location) []models.Location {
	seen := make(map[models.Location]bool)
	var out []models.Location
	add := func(p models.Location) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range geo.Sample(points, 20) {
		add(p)
	}
	for i := 1; i+1 < len(points); i++ {
		if geo.TurnAngle(points[i-1], points[i], points[i+1]) < sharpTurnAngle {
			add(points[i])
		}
	}
	return out
}

// RoadGeometry derives road features for candidate i. Curvature is 0 on a
// straight line and grows as the turn tightens.
func RoadGeometry(candidates []models.Location, i int) models.RoadFeatures {
	p := candidates[i]
	rng := seeded(p)
	f := models.RoadFeatures{
		RoadWidth:      geo.Round(8+rng.NormFloat64()*2, 2),
		Visibility:     geo.Round(10+rng.NormFloat64()*3, 2),
		Gradient:       geo.Round(rng.NormFloat64()*3, 2),
		IsIntersection: i%10 == 0,
	}
	if i > 0 && i < len(candidates)-1 {
		angle := geo.TurnAngle(candidates[i-1], p, candidates[i+1])
		f.Curvature = geo.Round(2-angle/90, 3)
	}
	return f
}

// BlindSpotProbability is the indicator model behind blind-spot scoring.
func BlindSpotProbability(f models.RoadFeatures, elevation float64) float64 {
	p := 0.05
	if f.RoadWidth < 5 {
		p += 0.2
	}
	if f.Curvature > 1 {
		p += 0.3
	}
	if math.Abs(f.Gradient) > 10 {
		p += 0.15
	}
	if f.Visibility < 3 {
		p += 0.4
	}
	if f.IsIntersection {
		p += 0.2
	}
	if elevation > 300 && f.Curvature > 0.5 {
		p += 0.1
	}
	return clamp01(p)
}

func (b *BlindSpot) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	candidates := BlindSpotCandidates(waypoints)
	out := []models.RiskPoint{}
	if len(candidates) == 0 {
		return out, nil
	}

	samples, err := b.Elevation.Elevation(ctx, candidates)
	if err != nil {
		return nil, err
	}
	elevations := make(map[models.Location]float64, len(samples))
	for _, s := range samples {
		elevations[s.Location] = s.Elevation
	}

	for i, p := range candidates {
		elev, ok := elevations[p]
		if !ok {
			continue
		}
		f := RoadGeometry(candidates, i)
		prob := BlindSpotProbability(f, elev)
		if prob < 0.6 {
			continue
		}
		features := f
		out = append(out, models.RiskPoint{
			Location:    p,
			RiskLevel:   levelFor(prob, 0.6, 0.8),
			Probability: ptr(geo.Round(prob, 3)),
			Features:    &features,
		})
	}
	return out, nil
}
