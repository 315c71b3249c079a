// Package risk turns per-category risk points into a route score, a severity
// breakdown and safety recommendations.
package risk

import (
	"math"
	"strings"

	"journey-risk-api-server/internal/models"
)

// Thresholds are the score cut-offs for medium and high.
type Thresholds struct {
	Medium float64
	High   float64
}

var DefaultThresholds = Thresholds{Medium: 6, High: 8}

// Counts tallies points by severity.
type Counts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

func (c Counts) Total() int { return c.High + c.Medium + c.Low }

func (c *Counts) add(level string) {
	switch strings.ToLower(level) {
	case models.RiskLevelHigh:
		c.High++
	case models.RiskLevelMedium:
		c.Medium++
	case models.RiskLevelLow:
		c.Low++
	}
}

// Count tallies one list of points. Unknown levels are ignored.
func Count(points []models.RiskPoint) Counts {
	var c Counts
	for _, p := range points {
		c.add(p.RiskLevel)
	}
	return c
}

// CountAll tallies every category of rd.
func CountAll(rd *models.RiskData) Counts {
	var c Counts
	for _, cat := range models.Categories {
		cc := Count(rd.Points(cat))
		c.High += cc.High
		c.Medium += cc.Medium
		c.Low += cc.Low
	}
	return c
}

// Score weighs high 5, medium 2 and low 1, averages over all points and maps
// the result onto 0..10 with one decimal.
func (t Thresholds) Score(c Counts) (float64, string) {
	total := c.Total()
	if total == 0 {
		return 0, models.RiskLevelLow
	}
	weighted := float64(5*c.High+2*c.Medium+c.Low) / float64(total)
	score := math.Round(math.Min(10, weighted/5*10)*10) / 10
	return score, t.Level(score)
}

// Level classifies a score.
func (t Thresholds) Level(score float64) string {
	switch {
	case score >= t.High:
		return models.RiskLevelHigh
	case score >= t.Medium:
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}

// Aggregate scores a route's risk data. Missing data scores 0 with level unknown.
func (t Thresholds) Aggregate(rd *models.RiskData) (float64, string) {
	if rd == nil {
		return 0, models.RiskLevelUnknown
	}
	return t.Score(CountAll(rd))
}
