package estimator

import (
	"context"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

var (
	zoneTypes = []string{
		"Wildlife Reserve",
		"National Park",
		"Forest Reserve",
		"Protected Watershed",
		"Wetland Reserve",
		"Biodiversity Hotspot",
	}
	zoneRestrictions = []string{
		"Speed Limit Reduction",
		"No Honking",
		"Wildlife Crossing Area",
		"No Stopping",
		"Restricted Hours",
		"Hazardous Materials Prohibition",
	}
	zonePrefixes = []string{"Northern", "Eastern", "Western", "Southern", "Central", "Upper", "Lower"}
	zoneFeatures = []string{"Valley", "Ridge", "Hills", "Plains", "Basin", "Mountains", "Forest"}
)

// InEcoZone gives each coordinate a stable 10% chance of lying in a protected area.
func InEcoZone(p models.Location) bool {
	return seeded(p).Float64() < 0.1
}

// EcoZoneAt describes the protected area at p.
func EcoZoneAt(p models.Location) models.RiskPoint {
	rng := seeded(p)
	zoneType := zoneTypes[rng.Intn(len(zoneTypes))]
	name := zonePrefixes[rng.Intn(len(zonePrefixes))] + " " +
		zoneFeatures[rng.Intn(len(zoneFeatures))] + " " + zoneType

	n := 1 + rng.Intn(3)
	restrictions := make([]string, 0, n)
	for i := 0; i < n; i++ {
		r := zoneRestrictions[rng.Intn(len(zoneRestrictions))]
		dup := false
		for _, have := range restrictions {
			if have == r {
				dup = true
				break
			}
		}
		if !dup {
			restrictions = append(restrictions, r)
		}
	}

	level := models.RiskLevelLow
	if len(restrictions) >= 3 {
		level = models.RiskLevelMedium
	}
	return models.RiskPoint{
		Location:     p,
		RiskLevel:    level,
		ZoneName:     name,
		ZoneType:     zoneType,
		Restrictions: restrictions,
	}
}

// EcoZone reports protected areas on every 50th waypoint, thinned again to at most ~50 lookups.
type EcoZone struct{}

func (EcoZone) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	sampled := geo.Sample(waypoints, 50)
	sampled = geo.Sample(sampled, geo.StepFor(len(sampled), 50))

	out := []models.RiskPoint{}
	for _, p := range sampled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if InEcoZone(p) {
			out = append(out, EcoZoneAt(p))
		}
	}
	return out, nil
}
