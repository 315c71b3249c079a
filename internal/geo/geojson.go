package geo

import (
	"fmt"

	"journey-risk-api-server/internal/models"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
)

// RouteFeatureCollection renders the route as a LineString feature followed by one Point
// feature per risk point. GeoJSON order is lng, lat.
func RouteFeatureCollection(route *models.Route, rd *models.RiskData) (*gjson.FeatureCollection, error) {
	fc := &gjson.FeatureCollection{}

	if len(route.Waypoints) >= 2 {
		coords := make([]geom.Coord, 0, len(route.Waypoints))
		for _, p := range route.Waypoints {
			coords = append(coords, geom.Coord{p.Lng, p.Lat})
		}
		line, err := geom.NewLineString(geom.XY).SetCoords(coords)
		if err != nil {
			return nil, fmt.Errorf("build route line: %w", err)
		}
		props := map[string]interface{}{
			"route_id": route.RouteID,
			"name":     route.Name,
			"status":   route.Status,
		}
		if route.RiskLevel != nil {
			props["risk_level"] = *route.RiskLevel
		}
		if route.RiskScore != nil {
			props["risk_score"] = *route.RiskScore
		}
		fc.Features = append(fc.Features, &gjson.Feature{ID: route.RouteID, Geometry: line, Properties: props})
	}

	if rd == nil {
		return fc, nil
	}
	for _, cat := range models.Categories {
		for _, rp := range rd.Points(cat) {
			pt := geom.NewPointFlat(geom.XY, []float64{rp.Location.Lng, rp.Location.Lat})
			fc.Features = append(fc.Features, &gjson.Feature{
				Geometry: pt,
				Properties: map[string]interface{}{
					"category":   cat.Short(),
					"risk_level": rp.RiskLevel,
				},
			})
		}
	}
	return fc, nil
}
