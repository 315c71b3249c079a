// Package traffic generates road type, congestion and speed limit samples along a route.
package traffic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"journey-risk-api-server/internal/cache"
	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/models"
)

// Road types in code order.
const (
	RoadHighway      = "highway"
	RoadPrimary      = "primary"
	RoadSecondary    = "secondary"
	RoadIntersection = "intersection"
	RoadResidential  = "residential"
	RoadUnknown      = "unknown"
)

var (
	roadTypes   = []string{RoadHighway, RoadPrimary, RoadSecondary, RoadResidential, RoadIntersection}
	roadWeights = []float64{0.2, 0.3, 0.3, 0.15, 0.05}
	baseLimits  = map[string]float64{
		RoadHighway:      100,
		RoadPrimary:      80,
		RoadSecondary:    60,
		RoadResidential:  50,
		RoadIntersection: 30,
	}
)

// RoadCode maps a road type to its numeric feature value.
func RoadCode(roadType string) int {
	switch roadType {
	case RoadHighway:
		return 0
	case RoadPrimary:
		return 1
	case RoadSecondary:
		return 2
	case RoadIntersection:
		return 3
	case RoadResidential:
		return 4
	}
	return 5
}

// Sample is the traffic picture at one point.
type Sample struct {
	Location        models.Location `json:"location"`
	CongestionLevel int             `json:"congestion_level"` // 0 free flow .. 4 standstill
	SpeedLimit      float64         `json:"speed_limit"`      // km/h
	RoadType        string          `json:"road_type"`
}

// IsRushHour reports 7-9 and 16-18 local hour.
func IsRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18)
}

// Service produces cached samples. Now is injectable for tests.
type Service struct {
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Registry
	Now     func() time.Time
}

func NewService(c cache.Cache, ttl time.Duration, m *metrics.Registry) *Service {
	return &Service{cache: c, ttl: ttl, metrics: m, Now: time.Now}
}

// Along samples every max(1, n/50)-th point.
func (s *Service) Along(ctx context.Context, points []models.Location) ([]Sample, error) {
	step := geo.StepFor(len(points), 50)
	out := make([]Sample, 0, len(points)/step+1)
	for _, p := range geo.Sample(points, step) {
		smp, err := s.At(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, nil
}

// At returns the sample for one point.
func (s *Service) At(ctx context.Context, p models.Location) (Sample, error) {
	now := s.Now()
	key := fmt.Sprintf("traffic:%.4f,%.4f:%d", p.Lat, p.Lng, now.Hour())
	return cache.GetOrSet(ctx, s.cache, s.metrics, key, s.ttl, func() (Sample, error) {
		return Generate(p, now), nil
	})
}

// Generate derives a sample from the coordinate and the hour. Congestion is
// exponential with mean 2 in rush hour and 1 otherwise, capped at 4.
func Generate(p models.Location, now time.Time) Sample {
	rng := rand.New(rand.NewSource(geo.CoordSeed(p, 1000)))
	mean := 1.0
	if IsRushHour(now.Hour()) {
		mean = 2.0
	}
	congestion := int(math.Min(4, rng.ExpFloat64()*mean))

	roadType := RoadTypeAt(p)
	return Sample{
		Location:        p,
		CongestionLevel: congestion,
		SpeedLimit:      SpeedLimit(roadType, congestion),
		RoadType:        roadType,
	}
}

// RoadTypeAt picks a weighted road type seeded by the coordinate.
func RoadTypeAt(p models.Location) string {
	rng := rand.New(rand.NewSource(geo.CoordSeed(p, 10000)))
	r := rng.Float64()
	acc := 0.0
	for i, w := range roadWeights {
		acc += w
		if r < acc {
			return roadTypes[i]
		}
	}
	return roadTypes[len(roadTypes)-1]
}

// SpeedLimit lowers the base limit by 30 km/h for heavy congestion and 10 for any; floor 30.
func SpeedLimit(roadType string, congestion int) float64 {
	limit, ok := baseLimits[roadType]
	if !ok {
		limit = 50
	}
	switch {
	case congestion >= 3:
		limit -= 30
	case congestion >= 1:
		limit -= 10
	}
	return math.Max(30, limit)
}

// Nearest returns the sample closest to p, or false when samples is empty.
func Nearest(samples []Sample, p models.Location) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	best, bestD := 0, math.Inf(1)
	for i, s := range samples {
		if d := geo.HaversineKm(p, s.Location); d < bestD {
			best, bestD = i, d
		}
	}
	return samples[best], true
}
