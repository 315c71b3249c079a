package estimator

import (
	"math"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

// DefaultHotspotRadiusKm is used when the caller gives no radius.
const DefaultHotspotRadiusKm = 10.0

// Hotspot summarizes historical accidents at one location. Rates are percentages.
type Hotspot struct {
	Location      models.Location `json:"location"`
	AccidentCount int             `json:"accident_count"`
	InjuryRate    float64         `json:"injury_rate"`
	FatalityRate  float64         `json:"fatality_rate"`
	RiskLevel     string          `json:"risk_level"`
}

// HotspotProbes returns eight points on a ring of radiusKm around center, 45 degrees apart, then center.
func HotspotProbes(center models.Location, radiusKm float64) []models.Location {
	out := make([]models.Location, 0, 9)
	for i := 0; i < 8; i++ {
		angle := float64(i) * 45 * math.Pi / 180
		out = append(out, geo.Offset(center, radiusKm*math.Sin(angle), radiusKm*math.Cos(angle)))
	}
	return append(out, center)
}

// Hotspots checks every ring probe; each has a stable 5% chance of being an accident hotspot.
func Hotspots(center models.Location, radiusKm float64) []Hotspot {
	if radiusKm <= 0 {
		radiusKm = DefaultHotspotRadiusKm
	}
	out := []Hotspot{}
	for _, p := range HotspotProbes(center, radiusKm) {
		if h, ok := HotspotAt(p); ok {
			out = append(out, h)
		}
	}
	return out
}

// HotspotAt reports the accident history at p when it is a hotspot.
func HotspotAt(p models.Location) (Hotspot, bool) {
	rng := seeded(p)
	if rng.Float64() >= 0.05 {
		return Hotspot{}, false
	}
	count := 5 + rng.Intn(25)
	injury := rng.Float64() * 0.5
	fatality := rng.Float64() * 0.1

	level := models.RiskLevelLow
	switch {
	case count > 20 || fatality > 0.05:
		level = models.RiskLevelHigh
	case count > 10 || injury > 0.25:
		level = models.RiskLevelMedium
	}
	return Hotspot{
		Location:      p,
		AccidentCount: count,
		InjuryRate:    geo.Round(injury*100, 1),
		FatalityRate:  geo.Round(fatality*100, 1),
		RiskLevel:     level,
	}, true
}
