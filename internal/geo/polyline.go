package geo

import (
	"fmt"

	"journey-risk-api-server/internal/models"

	"github.com/twpayne/go-polyline"
)

// DecodePolyline decodes a Google encoded polyline into lat/lng points.
func DecodePolyline(encoded string) ([]models.Location, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	points := make([]models.Location, 0, len(coords))
	for _, c := range coords {
		points = append(points, models.Location{Lat: c[0], Lng: c[1]})
	}
	return points, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []models.Location) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}
