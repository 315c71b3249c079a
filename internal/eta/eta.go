// Package eta predicts travel time from traffic, weather and vehicle type.
package eta

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/traffic"
)

const (
	minSegmentKm    = 0.01
	weatherNearbyKm = 5.0
)

// minutes per km
var baseMinutesPerKm = map[string]float64{
	traffic.RoadHighway:     0.6,
	traffic.RoadPrimary:     1.0,
	traffic.RoadSecondary:   1.5,
	traffic.RoadResidential: 2.0,
	traffic.RoadUnknown:     1.2,
}

var vehicleMultipliers = map[string]float64{
	"car":        1.0,
	"truck":      1.3,
	"bus":        1.4,
	"motorcycle": 0.9,
	"bicycle":    3.0,
}

// VehicleCode encodes a vehicle type; unknown types get 5.
func VehicleCode(vehicleType string) int {
	switch strings.ToLower(vehicleType) {
	case "car":
		return 0
	case "truck":
		return 1
	case "bus":
		return 2
	case "motorcycle":
		return 3
	case "bicycle":
		return 4
	}
	return 5
}

// RiskCode encodes a weather risk level: low 0, medium 1, high 2.
func RiskCode(level string) int {
	switch strings.ToLower(level) {
	case models.RiskLevelMedium:
		return 1
	case models.RiskLevelHigh:
		return 2
	}
	return 0
}

// Segment is one leg between consecutive waypoints with its features.
type Segment struct {
	Start, End    models.Location
	DistanceKm    float64
	Congestion    int
	SpeedLimit    float64
	RoadType      string
	IsHighway     bool
	VehicleType   string
	Hour          int
	Weekend       bool
	Temperature   float64
	Visibility    float64
	Precipitation float64
	WindSpeed     float64
	WeatherRisk   int
}

// PredictMinutes is the travel-time regression for one segment.
func PredictMinutes(s Segment) float64 {
	base, ok := baseMinutesPerKm[s.RoadType]
	if !ok {
		base = baseMinutesPerKm[traffic.RoadUnknown]
	}
	mult, ok := vehicleMultipliers[strings.ToLower(s.VehicleType)]
	if !ok {
		mult = 1.0
	}

	m := 1.0 + 0.2*float64(s.Congestion)
	switch {
	case traffic.IsRushHour(s.Hour):
		m += 0.3
	case s.Hour >= 22 || s.Hour <= 5:
		m -= 0.15
	}
	if s.Weekend {
		m -= 0.1
	}
	if s.Precipitation > 0 {
		m += 0.05
	}
	if s.Precipitation > 3 {
		m += 0.2
	}
	if s.Visibility < 3 {
		m += 0.3
	}
	m += 0.1 * float64(s.WeatherRisk)

	return s.DistanceKm * base * mult * m
}

// FormatMinutes renders "<H> hours <M> mins" or "<M> mins".
func FormatMinutes(minutes int) string {
	if h := minutes / 60; h > 0 {
		return fmt.Sprintf("%d hours %d mins", h, minutes%60)
	}
	return fmt.Sprintf("%d mins", minutes)
}

// TrafficSource samples traffic along a route.
type TrafficSource interface {
	Along(ctx context.Context, points []models.Location) ([]traffic.Sample, error)
}

type Optimizer struct {
	Traffic TrafficSource
	Now     func() time.Time
}

func NewOptimizer(t TrafficSource) *Optimizer {
	return &Optimizer{Traffic: t, Now: time.Now}
}

// Segments splits waypoints into legs of at least 10 m and attaches the
// nearest traffic sample and the nearest weather hazard within 5 km.
func (o *Optimizer) Segments(waypoints []models.Location, vehicleType string, samples []traffic.Sample, hazards []models.RiskPoint) []Segment {
	now := o.Now().UTC()
	wd := now.Weekday()

	var out []Segment
	for i := 0; i+1 < len(waypoints); i++ {
		a, b := waypoints[i], waypoints[i+1]
		d := geo.HaversineKm(a, b)
		if d < minSegmentKm {
			continue
		}
		seg := Segment{
			Start:       a,
			End:         b,
			DistanceKm:  d,
			SpeedLimit:  50,
			RoadType:    traffic.RoadUnknown,
			VehicleType: vehicleType,
			Hour:        now.Hour(),
			Weekend:     wd == time.Saturday || wd == time.Sunday,
			Temperature: 20,
			Visibility:  10,
		}

		if t, ok := nearestTo(a, b, len(samples), func(j int) models.Location { return samples[j].Location }, math.Inf(1)); ok {
			seg.Congestion = samples[t].CongestionLevel
			seg.SpeedLimit = samples[t].SpeedLimit
			seg.RoadType = samples[t].RoadType
			seg.IsHighway = samples[t].RoadType == traffic.RoadHighway
		}
		if w, ok := nearestTo(a, b, len(hazards), func(j int) models.Location { return hazards[j].Location }, weatherNearbyKm); ok {
			h := hazards[w]
			seg.Temperature = deref(h.Temperature, 20)
			seg.Visibility = deref(h.Visibility, 10)
			seg.Precipitation = deref(h.Precipitation, 0)
			seg.WindSpeed = deref(h.WindSpeed, 0)
			seg.WeatherRisk = RiskCode(h.RiskLevel)
		}
		out = append(out, seg)
	}
	return out
}

// Optimize returns the predicted duration, or false when fewer than two
// waypoints or no usable segment remain.
func (o *Optimizer) Optimize(ctx context.Context, waypoints []models.Location, vehicleType string, hazards []models.RiskPoint) (string, bool, error) {
	if len(waypoints) < 2 {
		return "", false, nil
	}
	if vehicleType == "" {
		vehicleType = models.DefaultVehicleType
	}
	var samples []traffic.Sample
	if o.Traffic != nil {
		var err error
		samples, err = o.Traffic.Along(ctx, waypoints)
		if err != nil {
			return "", false, fmt.Errorf("sample traffic: %w", err)
		}
	}

	segs := o.Segments(waypoints, vehicleType, samples, hazards)
	if len(segs) == 0 {
		return "", false, nil
	}
	total := 0.0
	for _, s := range segs {
		total += PredictMinutes(s)
	}
	return FormatMinutes(int(math.Round(total))), true, nil
}

// nearestTo finds the candidate with the smallest mean distance to a and b, strictly below limit.
func nearestTo(a, b models.Location, n int, at func(int) models.Location, limit float64) (int, bool) {
	best, bestD := -1, math.Inf(1)
	for j := 0; j < n; j++ {
		loc := at(j)
		d := (geo.HaversineKm(a, loc) + geo.HaversineKm(b, loc)) / 2
		if d < bestD && d < limit {
			best, bestD = j, d
		}
	}
	return best, best >= 0
}

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
