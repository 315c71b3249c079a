package estimator

import (
	"context"
	"time"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/traffic"

	"go.uber.org/zap"
)

// TrafficSource returns the traffic sample at a point.
type TrafficSource interface {
	At(ctx context.Context, p models.Location) (traffic.Sample, error)
}

// AccidentFeatures are the inputs of the accident model for one point.
type AccidentFeatures struct {
	Hour          int
	Weekend       bool
	Precipitation float64
	Temperature   float64
	Visibility    float64
	WindSpeed     float64
	Congestion    int
	SpeedLimit    float64
	RoadCode      int
}

func defaultAccidentFeatures(now time.Time) AccidentFeatures {
	wd := now.Weekday()
	return AccidentFeatures{
		Hour:        now.Hour(),
		Weekend:     wd == time.Saturday || wd == time.Sunday,
		Temperature: 20,
		Visibility:  10,
		SpeedLimit:  50,
		RoadCode:    traffic.RoadCode(traffic.RoadUnknown),
	}
}

func (f AccidentFeatures) night() bool { return f.Hour >= 22 || f.Hour <= 6 }

// AccidentProbability weighs the same indicators the factors are built from.
func AccidentProbability(f AccidentFeatures) float64 {
	p := 0.1 + 0.03*float64(f.Congestion)
	if f.night() {
		p += 0.15
	}
	if f.Weekend {
		p += 0.05
	}
	if f.Precipitation > 5 {
		p += 0.15
	}
	if f.Visibility < 3 {
		p += 0.2
	}
	if f.WindSpeed > 15 {
		p += 0.1
	}
	if f.Congestion > 3 {
		p += 0.2
	}
	if f.RoadCode == traffic.RoadCode(traffic.RoadIntersection) {
		p += 0.15
	}
	return clamp01(p)
}

// AccidentFactors explains a prediction. With no specific factor a generic one
// is chosen from the probability.
func AccidentFactors(f AccidentFeatures, p float64) []models.RiskFactor {
	var out []models.RiskFactor
	add := func(factor, desc string) {
		out = append(out, models.RiskFactor{Factor: factor, Description: desc})
	}
	if f.night() {
		add("Time of day", "Driving during late night or early morning hours")
	}
	if f.Weekend {
		add("Weekend", "Weekend driving has higher accident rates")
	}
	if f.Precipitation > 5 {
		add("Weather", "Heavy precipitation reducing visibility and traction")
	}
	if f.Visibility < 3 {
		add("Visibility", "Low visibility conditions")
	}
	if f.WindSpeed > 15 {
		add("Wind", "High wind speeds affecting vehicle stability")
	}
	if f.Congestion > 3 {
		add("Traffic", "Heavy traffic congestion")
	}
	if f.RoadCode == traffic.RoadCode(traffic.RoadIntersection) {
		add("Road type", "Intersection with crossing traffic")
	}
	if len(out) == 0 {
		switch {
		case p >= 0.7:
			add("Multiple factors", "Combination of various risk factors")
		case p >= 0.4:
			add("Moderate risk", "Standard driving conditions with some risk factors")
		default:
			add("Low risk", "Generally safe driving conditions")
		}
	}
	return out
}

// Accident scores every 10th waypoint from time, weather and traffic.
type Accident struct {
	Weather Observer
	Traffic TrafficSource
	Logger  *zap.Logger
	Now     func() time.Time
}

func (a *Accident) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	out := []models.RiskPoint{}
	if len(waypoints) == 0 {
		return out, nil
	}
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}

	obs, err := a.Weather.Observe(ctx, waypoints)
	if err != nil {
		return nil, err
	}

	for _, i := range geo.SampleIndices(len(waypoints), 10) {
		p := waypoints[i]
		f := defaultAccidentFeatures(now)
		if i < len(obs) {
			f.Precipitation = obs[i].Precipitation
			f.Temperature = obs[i].Temperature
			f.Visibility = obs[i].Visibility
			f.WindSpeed = obs[i].WindSpeed
		}
		if a.Traffic != nil {
			if t, err := a.Traffic.At(ctx, p); err == nil {
				f.Congestion = t.CongestionLevel
				f.SpeedLimit = t.SpeedLimit
				f.RoadCode = traffic.RoadCode(t.RoadType)
			} else if a.Logger != nil {
				a.Logger.Debug("traffic sample unavailable", zap.Error(err))
			}
		}

		prob := AccidentProbability(f)
		out = append(out, models.RiskPoint{
			Location:    p,
			RiskLevel:   levelFor(prob, 0.4, 0.7),
			Probability: ptr(geo.Round(prob, 3)),
			Factors:     AccidentFactors(f, prob),
		})
	}
	return out, nil
}
