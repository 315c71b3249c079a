package estimator

import (
	"context"
	"math"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

// Elevation flags consecutive samples whose gradient is at least 7%.
type Elevation struct {
	Source ElevationSource
}

func (e *Elevation) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	samples, err := e.Source.Elevation(ctx, waypoints)
	if err != nil {
		return nil, err
	}

	out := []models.RiskPoint{}
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		distKm := geo.HaversineKm(prev.Location, cur.Location)
		if distKm < 0.01 {
			continue
		}
		gradient := (cur.Elevation - prev.Elevation) / (distKm * 1000) * 100
		abs := math.Abs(gradient)
		if abs < 7 {
			continue
		}

		riskType := "Descent"
		if gradient > 0 {
			riskType = "Ascent"
		}
		level := models.RiskLevelLow
		switch {
		case abs >= 15:
			level = models.RiskLevelHigh
		case abs >= 10:
			level = models.RiskLevelMedium
		}
		out = append(out, models.RiskPoint{
			Location:  cur.Location,
			RiskLevel: level,
			RiskType:  riskType,
			Gradient:  ptr(geo.Round(gradient, 1)),
			Elevation: ptr(geo.Round(cur.Elevation, 1)),
			Distance:  ptr(math.Round(distKm * 1000)),
		})
	}
	return out, nil
}
