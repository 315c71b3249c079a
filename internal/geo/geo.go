// Package geo holds the coordinate math shared by the estimators, the facility locator and the ETA model.
package geo

import (
	"math"

	"journey-risk-api-server/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b models.Location) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// HaversineMeters is HaversineKm in metres.
func HaversineMeters(a, b models.Location) float64 {
	return HaversineKm(a, b) * 1000
}

// Sample returns every step-th point starting with the first. step < 1 is treated as 1.
func Sample(points []models.Location, step int) []models.Location {
	if step < 1 {
		step = 1
	}
	out := make([]models.Location, 0, len(points)/step+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}

// SampleIndices is Sample but returns indices.
func SampleIndices(n, step int) []int {
	if step < 1 {
		step = 1
	}
	out := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	return out
}

// StepFor returns max(1, n/div).
func StepFor(n, div int) int {
	if div <= 0 || n/div < 1 {
		return 1
	}
	return n / div
}

// TurnAngle is the angle in degrees at b formed by the segments b->a and b->c.
// A straight line gives 180, a U-turn gives 0.
func TurnAngle(a, b, c models.Location) float64 {
	v1x, v1y := a.Lng-b.Lng, a.Lat-b.Lat
	v2x, v2y := c.Lng-b.Lng, c.Lat-b.Lat
	n1 := math.Hypot(v1x, v1y)
	n2 := math.Hypot(v2x, v2y)
	if n1 == 0 || n2 == 0 {
		return 180
	}
	cos := (v1x*v2x + v1y*v2y) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Offset moves p by dLatKm north and dLngKm east using the flat-earth approximation.
func Offset(p models.Location, dLatKm, dLngKm float64) models.Location {
	return models.Location{
		Lat: p.Lat + dLatKm/111,
		Lng: p.Lng + dLngKm/(111*math.Cos(toRad(p.Lat))),
	}
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// CoordSeed derives a PRNG seed from a coordinate: int(|lat*scale| + |lng*scale|).
// Nearby points share a seed, so synthetic values are stable for repeated queries.
func CoordSeed(p models.Location, scale float64) int64 {
	return int64(math.Abs(p.Lat*scale) + math.Abs(p.Lng*scale))
}
