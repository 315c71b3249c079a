package maps

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

// SyntheticProvider fabricates deterministic geometry when no Google key is configured.
// Addresses are hashed onto a coordinate box, the route is a gently curving line between
// the two ends and elevations follow a smooth terrain function.
type SyntheticProvider struct {
	// AvgSpeedKmh sets the reported duration.
	AvgSpeedKmh float64
}

func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{AvgSpeedKmh: 50}
}

// Geocode parses "lat,lng" or hashes the address into lat [25,50], lng [-120,-75].
func (p *SyntheticProvider) Geocode(address string) models.Location {
	if parts := strings.Split(address, ","); len(parts) == 2 {
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 == nil && err2 == nil {
			return models.Location{Lat: lat, Lng: lng}
		}
	}
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(address))))
	sum := h.Sum64()
	lat := 25 + float64(sum%25000)/1000
	lng := -120 + float64((sum/25000)%45000)/1000
	return models.Location{Lat: lat, Lng: lng}
}

func (p *SyntheticProvider) Directions(ctx context.Context, origin, destination string) (*Directions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("empty origin or destination: %w", ErrNoRoute)
	}
	start := p.Geocode(origin)
	end := p.Geocode(destination)
	straight := geo.HaversineKm(start, end)
	if straight < 0.01 {
		return nil, fmt.Errorf("origin and destination coincide: %w", ErrNoRoute)
	}

	n := int(math.Min(1000, math.Max(20, straight*2)))
	raw := make([]models.Location, 0, n+1)
	// perpendicular wiggle of up to 2% of the span, two full periods
	dLat, dLng := end.Lat-start.Lat, end.Lng-start.Lng
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		w := 0.02 * math.Sin(t*4*math.Pi)
		raw = append(raw, models.Location{
			Lat: start.Lat + dLat*t - dLng*w,
			Lng: start.Lng + dLng*t + dLat*w,
		})
	}

	distKm := 0.0
	for i := 1; i < len(raw); i++ {
		distKm += geo.HaversineKm(raw[i-1], raw[i])
	}
	speed := p.AvgSpeedKmh
	if speed <= 0 {
		speed = 50
	}
	seconds := int(distKm / speed * 3600)

	return &Directions{
		Distance:        fmt.Sprintf("%.1f km", distKm),
		Duration:        FormatDuration(seconds),
		DistanceMeters:  int(distKm * 1000),
		DurationSeconds: seconds,
		Polyline:        geo.EncodePolyline(raw),
		Waypoints:       SampleWaypoints(raw),
		Start:           start,
		End:             end,
	}, nil
}

func (p *SyntheticProvider) Elevation(ctx context.Context, points []models.Location) ([]ElevationSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]ElevationSample, 0, len(points))
	for _, pt := range points {
		e := 300 + 180*math.Sin(pt.Lat*40) + 120*math.Cos(pt.Lng*55)
		out = append(out, ElevationSample{Location: pt, Elevation: e})
	}
	return out, nil
}

var syntheticPlaceNames = map[string][]string{
	"hospital":    {"General Hospital", "Community Medical Center", "Regional Hospital"},
	"police":      {"Police Station", "Sheriff Office", "Highway Patrol Post"},
	"gas_station": {"Fuel Stop", "Gas & Go", "Service Station"},
	"restaurant":  {"Roadside Diner", "Travel Plaza", "Rest Stop Cafe"},
	"car_repair":  {"Auto Repair", "Tire & Brake", "Truck Service Center"},
}

// NearbyPlaces scatters up to five places within 10 km of center and returns those inside
// radius. The scatter depends only on center and type, so a smaller radius yields a subset
// of a larger one.
func (p *SyntheticProvider) NearbyPlaces(ctx context.Context, center models.Location, placeType string, radius int) ([]Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%.3f,%.3f,%s", center.Lat, center.Lng, placeType)
	rng := rand.New(rand.NewSource(int64(h.Sum64() >> 1)))

	names := syntheticPlaceNames[placeType]
	if len(names) == 0 {
		names = []string{"Place"}
	}

	count := rng.Intn(6)
	places := make([]Place, 0, count)
	for i := 0; i < count; i++ {
		distKm := rng.Float64() * 10
		bearing := rng.Float64() * 2 * math.Pi
		if distKm*1000 > float64(radius) {
			continue
		}
		loc := geo.Offset(center, distKm*math.Cos(bearing), distKm*math.Sin(bearing))
		places = append(places, Place{
			PlaceID:  fmt.Sprintf("syn-%x-%d", h.Sum64(), i),
			Name:     names[i%len(names)],
			Vicinity: fmt.Sprintf("%.4f, %.4f", loc.Lat, loc.Lng),
			Location: loc,
			Distance: geo.HaversineMeters(center, loc),
		})
	}
	return places, nil
}

// FormatDuration renders seconds the way the directions API does ("1 hour 5 mins").
func FormatDuration(seconds int) string {
	mins := int(math.Round(float64(seconds) / 60))
	h, m := mins/60, mins%60
	unit := func(n int, one, many string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, one)
		}
		return fmt.Sprintf("%d %s", n, many)
	}
	if h == 0 {
		return unit(m, "min", "mins")
	}
	return unit(h, "hour", "hours") + " " + unit(m, "min", "mins")
}
