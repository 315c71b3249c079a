package estimator

import (
	"context"
	"math"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

var (
	carriers     = []string{"Verizon", "AT&T", "T-Mobile", "Sprint"}
	networkTypes = []string{"5G", "4G", "3G", "2G"}
)

// Coverage is the synthetic signal picture at one point.
type Coverage struct {
	Location       models.Location
	Provider       string
	NetworkType    string
	SignalStrength float64 // 0..100
}

// CoverageAt is stable per coordinate. Signal drops with the remoteness proxy
// derived from the fractional latitude.
func CoverageAt(p models.Location) Coverage {
	rng := seeded(p)
	provider := carriers[rng.Intn(len(carriers))]

	base := 70 + rng.NormFloat64()*20
	remoteness := math.Min(1, math.Max(0, 1-math.Mod(math.Abs(p.Lat), 1)*2))
	signal := math.Max(0, math.Min(100, base*(0.5+0.5*remoteness)))

	weights := []float64{0.3, 0.5, 0.15, 0.05}
	switch {
	case signal < 30:
		weights = []float64{0, 0.2, 0.5, 0.3}
	case signal < 60:
		weights = []float64{0.1, 0.4, 0.4, 0.1}
	}
	return Coverage{
		Location:       p,
		Provider:       provider,
		NetworkType:    networkTypes[weightedChoice(rng, weights)],
		SignalStrength: geo.Round(signal, 1),
	}
}

// Network reports weak coverage (signal below 70) on every 30th waypoint,
// thinned again to at most ~30 lookups.
type Network struct{}

func (Network) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	sampled := geo.Sample(waypoints, 30)
	sampled = geo.Sample(sampled, geo.StepFor(len(sampled), 30))

	out := []models.RiskPoint{}
	for _, p := range sampled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := CoverageAt(p)
		if c.SignalStrength >= 70 {
			continue
		}
		level := models.RiskLevelLow
		switch {
		case c.SignalStrength < 20:
			level = models.RiskLevelHigh
		case c.SignalStrength < 50:
			level = models.RiskLevelMedium
		}
		out = append(out, models.RiskPoint{
			Location:       p,
			RiskLevel:      level,
			SignalStrength: ptr(c.SignalStrength),
			NetworkType:    c.NetworkType,
			Provider:       c.Provider,
		})
	}
	return out, nil
}
