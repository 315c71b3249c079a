package risk

import (
	"fmt"

	"journey-risk-api-server/internal/models"
)

// CategorySummary is the severity breakdown of one category.
type CategorySummary struct {
	Counts
	Total int `json:"total"`
}

type Assessment struct {
	OverallScore float64                    `json:"overall_score"`
	RiskLevel    string                     `json:"risk_level"`
	TotalPoints  int                        `json:"total_points"`
	Categories   map[string]CategorySummary `json:"categories"`
	Facilities   map[string]int             `json:"facilities"`
}

// Assess builds the per-category breakdown. Stored scores win over recomputation
// so the assessment matches what the route shows.
func (t Thresholds) Assess(rd *models.RiskData) Assessment {
	a := Assessment{
		Categories: make(map[string]CategorySummary, len(models.Categories)),
		Facilities: make(map[string]int, len(models.FacilityCategories)),
	}
	for _, cat := range models.Categories {
		c := Count(rd.Points(cat))
		a.Categories[cat.Short()] = CategorySummary{Counts: c, Total: len(rd.Points(cat))}
		a.TotalPoints += len(rd.Points(cat))
	}
	for _, f := range models.FacilityCategories {
		a.Facilities[f] = len(rd.NearbyFacilities[f])
	}

	a.OverallScore, a.RiskLevel = t.Aggregate(rd)
	if rd.OverallRiskScore != nil && rd.RiskLevel != nil {
		a.OverallScore, a.RiskLevel = *rd.OverallRiskScore, *rd.RiskLevel
	}
	return a
}

// Recommendation is one piece of safety advice.
type Recommendation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

func countLevel(points []models.RiskPoint, levels ...string) int {
	n := 0
	for _, p := range points {
		for _, l := range levels {
			if p.RiskLevel == l {
				n++
				break
			}
		}
	}
	return n
}

// Recommendations derives advice from the risk data, most specific first.
func Recommendations(rd *models.RiskData) []Recommendation {
	out := []Recommendation{}
	if rd == nil {
		return out
	}
	high := models.RiskLevelHigh

	if n := countLevel(rd.ElevationRisks, high); n > 0 {
		out = append(out, Recommendation{"Elevation",
			fmt.Sprintf("Route contains %d high-risk steep gradients. Use lower gears on descents and maintain safe speeds.", n), high})
	}
	if n := countLevel(rd.BlindSpots, high); n > 0 {
		out = append(out, Recommendation{"Visibility",
			fmt.Sprintf("Route contains %d high-risk blind spots. Reduce speed and use extra caution in these areas.", n), high})
	}
	if n := countLevel(rd.WeatherHazards, high); n > 0 {
		out = append(out, Recommendation{"Weather",
			fmt.Sprintf("Route contains %d areas with severe weather conditions. Consider postponing travel or use extreme caution.", n), high})
	}
	if n := countLevel(rd.NetworkCoverage, high, models.RiskLevelMedium); n > 0 {
		out = append(out, Recommendation{"Communication",
			fmt.Sprintf("Route has %d areas with poor network coverage. Prepare alternate communication methods.", n), models.RiskLevelMedium})
	}
	if n := len(rd.AccidentRisks); n > 0 {
		out = append(out, Recommendation{"Accident Hotspots",
			fmt.Sprintf("Route contains %d accident-prone areas. Exercise heightened awareness in these locations.", n), high})
	}
	if n := len(rd.EcoSensitiveZones); n > 0 {
		out = append(out, Recommendation{"Environmental",
			fmt.Sprintf("Route passes through %d environmentally sensitive areas. Observe speed limits and wildlife warnings.", n), models.RiskLevelMedium})
	}
	if len(rd.NearbyFacilities[models.FacilityHospitals]) == 0 {
		out = append(out, Recommendation{"Emergency Services",
			"Limited access to hospitals along this route. Ensure adequate first aid supplies are available.", models.RiskLevelMedium})
	}
	return out
}
