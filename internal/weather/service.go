package weather

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"journey-risk-api-server/internal/cache"
	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sampleEvery      = 20
	nearbyKm         = 5.0
	fetchConcurrency = 4
)

// Service fetches sampled observations with caching and spreads them over every route point.
type Service struct {
	source  Source
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger
}

func NewService(source Source, c cache.Cache, ttl time.Duration, m *metrics.Registry, logger *zap.Logger) *Service {
	return &Service{source: source, cache: c, ttl: ttl, metrics: m, logger: logger}
}

// Current returns cached conditions at loc.
func (s *Service) Current(ctx context.Context, loc models.Location) (*Observation, error) {
	key := fmt.Sprintf("weather:%.4f,%.4f", loc.Lat, loc.Lng)
	obs, err := cache.GetOrSet(ctx, s.cache, s.metrics, key, s.ttl, func() (Observation, error) {
		o, err := s.source.Current(ctx, loc)
		if err != nil {
			return Observation{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// SamplePoints takes every 20th point, falling back to start, middle and end
// when that yields fewer than three samples on a route of at least three points.
func SamplePoints(points []models.Location) []models.Location {
	sampled := geo.Sample(points, sampleEvery)
	if len(sampled) < 3 && len(points) >= 3 {
		sampled = []models.Location{points[0], points[len(points)/2], points[len(points)-1]}
	}
	return sampled
}

// Observe returns one observation per input point. Failed samples are skipped;
// when every sample fails the result is empty.
func (s *Service) Observe(ctx context.Context, points []models.Location) ([]Observation, error) {
	if len(points) == 0 {
		return nil, nil
	}
	sampled := SamplePoints(points)

	results := make([]*Observation, len(sampled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, p := range sampled {
		i, p := i, p
		g.Go(func() error {
			obs, err := s.Current(gctx, p)
			if err != nil {
				s.logger.Warn("weather sample failed", zap.Float64("lat", p.Lat), zap.Float64("lng", p.Lng), zap.Error(err))
				return nil
			}
			results[i] = obs
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := make([]Observation, 0, len(results))
	for _, r := range results {
		if r != nil {
			samples = append(samples, *r)
		}
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return Interpolate(points, samples), nil
}

// Interpolate assigns weather to every point. A single sample is used everywhere;
// otherwise the nearest sample within 5 km wins, and beyond that the two nearest
// samples are blended by inverse relative distance. The condition comes from the nearest.
func Interpolate(points []models.Location, samples []Observation) []Observation {
	out := make([]Observation, 0, len(points))
	if len(samples) == 1 {
		for range points {
			out = append(out, samples[0])
		}
		return out
	}

	type ranked struct {
		d   float64
		obs *Observation
	}
	for _, p := range points {
		r := make([]ranked, len(samples))
		for i := range samples {
			r[i] = ranked{d: geo.HaversineKm(p, samples[i].Location), obs: &samples[i]}
		}
		sort.SliceStable(r, func(i, j int) bool { return r[i].d < r[j].d })

		if r[0].d < nearbyKm || r[0].d+r[1].d == 0 {
			out = append(out, *r[0].obs)
			continue
		}

		d1, d2 := r[0].d, r[1].d
		w1 := 1 - d1/(d1+d2)
		w2 := 1 - d2/(d1+d2)
		a, b := r[0].obs, r[1].obs
		mix := func(x, y float64) float64 { return x*w1 + y*w2 }

		out = append(out, Observation{
			Location:      p,
			Timestamp:     a.Timestamp,
			Temperature:   mix(a.Temperature, b.Temperature),
			FeelsLike:     mix(a.FeelsLike, b.FeelsLike),
			Humidity:      mix(a.Humidity, b.Humidity),
			Pressure:      mix(a.Pressure, b.Pressure),
			WindSpeed:     mix(a.WindSpeed, b.WindSpeed),
			WindDirection: a.WindDirection,
			Cloudiness:    mix(a.Cloudiness, b.Cloudiness),
			Visibility:    mix(a.Visibility, b.Visibility),
			Precipitation: mix(a.Precipitation, b.Precipitation),
			Condition:     a.Condition,
			Description:   a.Description,
			Icon:          a.Icon,
		})
	}
	return out
}

// HazardProbability scores an observation on the same indicators the hazard
// labels are built from: freezing, heavy precipitation, low visibility, high wind.
func HazardProbability(o Observation) float64 {
	p := 0.1
	if o.Temperature < 0 {
		p += 0.3
	}
	if o.Precipitation > 5 {
		p += 0.2
	}
	if o.Visibility < 1 {
		p += 0.4
	}
	if o.Visibility < 3 {
		p += 0.2
	}
	if o.WindSpeed > 15 {
		p += 0.2
	}
	if p > 1 {
		p = 1
	}
	return p
}

// HazardTypes lists the specific hazards present in an observation.
func HazardTypes(o Observation) []models.HazardType {
	var out []models.HazardType
	if o.Temperature < 0 {
		out = append(out, models.HazardType{Type: "Ice risk", Description: "Temperature below freezing, potential for ice on road"})
	}
	switch {
	case o.Precipitation > 5:
		out = append(out, models.HazardType{Type: "Heavy precipitation", Description: "Heavy rain or snow reducing visibility and traction"})
	case o.Precipitation > 2:
		out = append(out, models.HazardType{Type: "Moderate precipitation", Description: "Moderate rain or snow may affect road conditions"})
	}
	switch {
	case o.Visibility < 1:
		out = append(out, models.HazardType{Type: "Severe visibility reduction", Description: "Visibility less than 1 km, extreme caution required"})
	case o.Visibility < 3:
		out = append(out, models.HazardType{Type: "Poor visibility", Description: "Reduced visibility may affect driving conditions"})
	}
	if o.WindSpeed > 20 {
		out = append(out, models.HazardType{Type: "Strong winds", Description: "High winds may affect vehicle stability"})
	}
	desc := strings.ToLower(o.Description)
	if strings.Contains(desc, "thunderstorm") {
		out = append(out, models.HazardType{Type: "Thunderstorm", Description: "Lightning and potentially heavy rain"})
	}
	if strings.Contains(desc, "fog") {
		out = append(out, models.HazardType{Type: "Fog", Description: "Reduced visibility due to fog"})
	}
	if len(out) == 0 {
		switch strings.ToLower(o.Condition) {
		case "rain", "snow", "drizzle", "sleet":
			out = append(out, models.HazardType{Type: "Precipitation", Description: o.Condition + " may affect road conditions"})
		}
	}
	return out
}

// ToRiskPoint fills the weather fields of a risk point, rounded to one decimal.
func ToRiskPoint(o Observation, level string) models.RiskPoint {
	temp := geo.Round(o.Temperature, 1)
	vis := geo.Round(o.Visibility, 1)
	wind := geo.Round(o.WindSpeed, 1)
	precip := geo.Round(o.Precipitation, 1)
	return models.RiskPoint{
		Location:         o.Location,
		RiskLevel:        level,
		WeatherCondition: o.Condition,
		Temperature:      &temp,
		Visibility:       &vis,
		WindSpeed:        &wind,
		Precipitation:    &precip,
		HazardTypes:      HazardTypes(o),
	}
}

// Hazards scores every observation and keeps those with probability >= 0.3.
func Hazards(observations []Observation) []models.RiskPoint {
	out := []models.RiskPoint{}
	for _, o := range observations {
		p := HazardProbability(o)
		if p < 0.3 {
			continue
		}
		level := models.RiskLevelLow
		switch {
		case p >= 0.7:
			level = models.RiskLevelHigh
		case p >= 0.4:
			level = models.RiskLevelMedium
		}
		rp := ToRiskPoint(o, level)
		prob := geo.Round(p, 3)
		rp.Probability = &prob
		out = append(out, rp)
	}
	return out
}

// RefreshHazards is the rule-based classification used by the periodic refresh.
func RefreshHazards(observations []Observation) []models.RiskPoint {
	out := []models.RiskPoint{}
	for _, o := range observations {
		if !(o.Visibility < 3 || o.Precipitation > 2 || o.Temperature < 0 || o.WindSpeed > 15) {
			continue
		}
		level := models.RiskLevelLow
		switch {
		case o.Visibility < 1 || o.Precipitation > 5:
			level = models.RiskLevelHigh
		case o.Visibility < 2 || o.Precipitation > 3 || o.Temperature < -5 || o.WindSpeed > 20:
			level = models.RiskLevelMedium
		}
		out = append(out, ToRiskPoint(o, level))
	}
	return out
}
