// Package analytics builds the dashboard feeds: summaries, risk breakdowns,
// vehicle health, route comparison and the real-time view.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/risk"
	"journey-risk-api-server/internal/weather"

	"go.uber.org/zap"
)

const (
	SummaryWindow    = 30 * 24 * time.Hour
	RealTimeWindow   = time.Hour
	DefaultDays      = 30
	recentRouteLimit = 5
	telemetrySeries  = 20
	telemetryHistory = 1000
)

type Service struct {
	Store  *repository.Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewService(store *repository.Store, logger *zap.Logger) *Service {
	return &Service{Store: store, Logger: logger, Now: func() time.Time { return time.Now().UTC() }}
}

type SummaryStats struct {
	TotalRoutes      int            `json:"total_routes"`
	TotalDistance    float64        `json:"total_distance"`
	TotalDuration    float64        `json:"total_duration"` // hours
	RiskDistribution map[string]int `json:"risk_distribution"`
	TotalVehicles    int            `json:"total_vehicles"`
	RiskPointsByType map[string]int `json:"risk_points_by_type"`
}

type Summary struct {
	Summary         SummaryStats                 `json:"summary"`
	RecentRoutes    []models.Route               `json:"recent_routes"`
	Vehicles        []models.Vehicle             `json:"vehicles"`
	LatestTelemetry map[string]*models.Telemetry `json:"latest_telemetry"`
}

// Summary covers the user's routes created in the last 30 days.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	routes, _, err := s.Store.Routes.List(ctx, repository.RouteFilter{
		UserID:       userID,
		CreatedSince: s.Now().Add(-SummaryWindow),
	}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	stats := SummaryStats{
		TotalRoutes: len(routes),
		RiskDistribution: map[string]int{
			models.RiskLevelHigh:    0,
			models.RiskLevelMedium:  0,
			models.RiskLevelLow:     0,
			models.RiskLevelUnknown: 0,
		},
		RiskPointsByType: make(map[string]int, len(models.Categories)),
	}
	var minutes float64
	for i := range routes {
		level := models.RiskLevelUnknown
		if routes[i].RiskLevel != nil {
			level = *routes[i].RiskLevel
		}
		if _, ok := stats.RiskDistribution[level]; ok {
			stats.RiskDistribution[level]++
		}
		stats.TotalDistance += DistanceKm(routes[i].Distance)
		minutes += DurationMinutes(routes[i].Duration)
	}
	stats.TotalDistance = geo.Round(stats.TotalDistance, 1)
	stats.TotalDuration = geo.Round(minutes/60, 1)

	riskData, err := s.Store.RiskData.GetMany(ctx, routeIDs(routes))
	if err != nil {
		return nil, fmt.Errorf("load risk data: %w", err)
	}
	for _, c := range models.Categories {
		stats.RiskPointsByType[c.Short()] = 0
	}
	for _, rd := range riskData {
		for _, c := range models.Categories {
			stats.RiskPointsByType[c.Short()] += len(rd.Points(c))
		}
	}

	vehicles, err := s.Store.Vehicles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	stats.TotalVehicles = len(vehicles)
	latest := make(map[string]*models.Telemetry, len(vehicles))
	for _, v := range vehicles {
		t, err := s.Store.Telemetry.LatestByVehicle(ctx, v.ID.Hex())
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest telemetry: %w", err)
		}
		latest[v.ID.Hex()] = t
	}

	recent := routes
	if len(recent) > recentRouteLimit {
		recent = recent[:recentRouteLimit]
	}
	return &Summary{Summary: stats, RecentRoutes: recent, Vehicles: vehicles, LatestTelemetry: latest}, nil
}

type TrendPoint struct {
	Date      time.Time `json:"date"`
	RiskScore float64   `json:"risk_score"`
	RouteID   string    `json:"route_id"`
	RouteName string    `json:"route_name"`
}

type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight int     `json:"weight"`
}

// DistanceBands buckets facilities by distance from the route.
type DistanceBands struct {
	Under1km int `json:"under_1km"`
	OneTo5km int `json:"1km_to_5km"`
	Over5km  int `json:"over_5km"`
}

type RiskAnalysis struct {
	RiskTrends      []TrendPoint             `json:"risk_trends"`
	RiskCategories  map[string]risk.Counts   `json:"risk_categories"`
	RiskHeatmap     []HeatPoint              `json:"risk_heatmap"`
	TimeAnalysis    map[string]risk.Counts   `json:"time_analysis"`
	FacilitiesStats map[string]DistanceBands `json:"facilities_stats"`
}

// TimeOfDay buckets an hour into morning, afternoon, evening or night.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	}
	return "night"
}

func heatWeight(level string) int {
	switch level {
	case models.RiskLevelHigh:
		return 3
	case models.RiskLevelMedium:
		return 2
	}
	return 1
}

// RiskAnalysis covers completed routes created in the last days days, oldest first.
func (s *Service) RiskAnalysis(ctx context.Context, userID string, days int) (*RiskAnalysis, error) {
	if days <= 0 {
		days = DefaultDays
	}
	routes, _, err := s.Store.Routes.List(ctx, repository.RouteFilter{
		UserID:       userID,
		Status:       models.RouteStatusCompleted,
		CreatedSince: s.Now().AddDate(0, 0, -days),
	}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].CreatedAt.Before(routes[j].CreatedAt) })

	riskData, err := s.Store.RiskData.GetMany(ctx, routeIDs(routes))
	if err != nil {
		return nil, fmt.Errorf("load risk data: %w", err)
	}

	out := &RiskAnalysis{
		RiskTrends:      []TrendPoint{},
		RiskCategories:  make(map[string]risk.Counts, len(models.Categories)),
		RiskHeatmap:     []HeatPoint{},
		TimeAnalysis:    make(map[string]risk.Counts, 4),
		FacilitiesStats: make(map[string]DistanceBands, len(models.FacilityCategories)),
	}
	for _, period := range []string{"morning", "afternoon", "evening", "night"} {
		out.TimeAnalysis[period] = risk.Counts{}
	}
	for _, f := range models.FacilityCategories {
		out.FacilitiesStats[f] = DistanceBands{}
	}

	for i := range routes {
		r := &routes[i]
		if r.RiskScore != nil {
			out.RiskTrends = append(out.RiskTrends, TrendPoint{
				Date:      r.CreatedAt,
				RiskScore: *r.RiskScore,
				RouteID:   r.RouteID,
				RouteName: r.DisplayName(),
			})
		}
		if r.RiskLevel != nil {
			period := TimeOfDay(r.CreatedAt.Hour())
			c := out.TimeAnalysis[period]
			c = addCounts(c, risk.Count([]models.RiskPoint{{RiskLevel: *r.RiskLevel}}))
			out.TimeAnalysis[period] = c
		}

		rd, ok := riskData[r.RouteID]
		if !ok {
			continue
		}
		for _, cat := range models.Categories {
			points := rd.Points(cat)
			out.RiskCategories[cat.Short()] = addCounts(out.RiskCategories[cat.Short()], risk.Count(points))
			for _, p := range points {
				out.RiskHeatmap = append(out.RiskHeatmap, HeatPoint{
					Lat:    p.Location.Lat,
					Lng:    p.Location.Lng,
					Weight: heatWeight(p.RiskLevel),
				})
			}
		}
		for _, f := range models.FacilityCategories {
			bands := out.FacilitiesStats[f]
			for _, fac := range rd.NearbyFacilities[f] {
				switch {
				case fac.Distance <= 1000:
					bands.Under1km++
				case fac.Distance <= 5000:
					bands.OneTo5km++
				default:
					bands.Over5km++
				}
			}
			out.FacilitiesStats[f] = bands
		}
	}
	return out, nil
}

type VehicleStats struct {
	TotalRoutes          int         `json:"total_routes"`
	TotalDistance        float64     `json:"total_distance"`
	TotalDuration        float64     `json:"total_duration"` // hours
	RiskLevels           risk.Counts `json:"risk_levels"`
	BreakdownProbability float64     `json:"breakdown_probability"` // percent
}

type FuelSample struct {
	Timestamp time.Time `json:"timestamp"`
	FuelLevel float64   `json:"fuel_level"`
}

type EngineTempSample struct {
	Timestamp  time.Time `json:"timestamp"`
	EngineTemp float64   `json:"engine_temp"`
}

type VehicleTelemetrySeries struct {
	FuelData       []FuelSample       `json:"fuel_data"`
	EngineTempData []EngineTempSample `json:"engine_temp_data"`
}

type VehicleReport struct {
	Vehicle      models.Vehicle         `json:"vehicle"`
	Stats        VehicleStats           `json:"stats"`
	Telemetry    VehicleTelemetrySeries `json:"telemetry"`
	RecentRoutes []models.Route         `json:"recent_routes"`
}

// VehicleAnalysis reports usage and health for every vehicle the user owns.
func (s *Service) VehicleAnalysis(ctx context.Context, userID string) ([]VehicleReport, error) {
	vehicles, err := s.Store.Vehicles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	routes, _, err := s.Store.Routes.List(ctx, repository.RouteFilter{
		UserID: userID,
		Status: models.RouteStatusCompleted,
	}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	now := s.Now()
	out := make([]VehicleReport, 0, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		id := v.ID.Hex()

		var mine []models.Route
		var minutes float64
		stats := VehicleStats{}
		for j := range routes {
			r := &routes[j]
			if r.VehicleID == nil || *r.VehicleID != id {
				continue
			}
			mine = append(mine, *r)
			stats.TotalDistance += DistanceKm(r.Distance)
			minutes += DurationMinutes(r.Duration)
			if r.RiskLevel != nil {
				stats.RiskLevels = addCounts(stats.RiskLevels, risk.Count([]models.RiskPoint{{RiskLevel: *r.RiskLevel}}))
			}
		}
		stats.TotalRoutes = len(mine)
		stats.TotalDistance = geo.Round(stats.TotalDistance, 1)
		stats.TotalDuration = geo.Round(minutes/60, 1)

		telemetry, err := s.Store.Telemetry.ListByVehicle(ctx, id, telemetryHistory, 0)
		if err != nil {
			return nil, fmt.Errorf("list telemetry: %w", err)
		}
		if len(telemetry) > 0 {
			p := BreakdownProbability(NewBreakdownFeatures(v, &telemetry[0], now))
			stats.BreakdownProbability = geo.Round(p*100, 1)
		}

		if mine == nil {
			mine = []models.Route{}
		}
		if len(mine) > recentRouteLimit {
			mine = mine[:recentRouteLimit]
		}
		out = append(out, VehicleReport{
			Vehicle:      *v,
			Stats:        stats,
			Telemetry:    series(telemetry),
			RecentRoutes: mine,
		})
	}
	return out, nil
}

// series turns newest-first telemetry into the most recent samples in time order.
func series(telemetry []models.Telemetry) VehicleTelemetrySeries {
	s := VehicleTelemetrySeries{FuelData: []FuelSample{}, EngineTempData: []EngineTempSample{}}
	for i := len(telemetry) - 1; i >= 0; i-- {
		t := &telemetry[i]
		if t.FuelLevel != nil {
			s.FuelData = append(s.FuelData, FuelSample{Timestamp: t.Timestamp, FuelLevel: *t.FuelLevel})
		}
		if t.EngineTemp != nil {
			s.EngineTempData = append(s.EngineTempData, EngineTempSample{Timestamp: t.Timestamp, EngineTemp: *t.EngineTemp})
		}
	}
	if n := len(s.FuelData); n > telemetrySeries {
		s.FuelData = s.FuelData[n-telemetrySeries:]
	}
	if n := len(s.EngineTempData); n > telemetrySeries {
		s.EngineTempData = s.EngineTempData[n-telemetrySeries:]
	}
	return s
}

type ComparisonItem struct {
	RouteID           string         `json:"route_id"`
	Name              string         `json:"name"`
	CreatedAt         time.Time      `json:"created_at"`
	Distance          float64        `json:"distance"`
	Duration          float64        `json:"duration"` // minutes
	OptimizedDuration *string        `json:"optimized_duration"`
	RiskScore         float64        `json:"risk_score"`
	RiskLevel         string         `json:"risk_level"`
	RiskCounts        map[string]int `json:"risk_counts"`
	FacilityCounts    map[string]int `json:"facility_counts"`
	Origin            string         `json:"origin"`
	Destination       string         `json:"destination"`
}

// Compare lines up the given routes. Routes that are missing or not visible
// to the caller are skipped.
func (s *Service) Compare(ctx context.Context, userID string, isAdmin bool, ids []string) ([]ComparisonItem, error) {
	out := []ComparisonItem{}
	for _, id := range ids {
		r, err := s.Store.Routes.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load route: %w", err)
		}
		if r.UserID != userID && !isAdmin {
			continue
		}
		rd, err := s.Store.RiskData.Get(ctx, id)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load risk data: %w", err)
		}

		item := ComparisonItem{
			RouteID:           r.RouteID,
			Name:              r.DisplayName(),
			CreatedAt:         r.CreatedAt,
			Distance:          DistanceKm(r.Distance),
			Duration:          DurationMinutes(r.Duration),
			OptimizedDuration: r.OptimizedDuration,
			RiskLevel:         models.RiskLevelUnknown,
			RiskCounts:        make(map[string]int, len(models.Categories)),
			FacilityCounts:    make(map[string]int, len(models.FacilityCategories)),
			Origin:            r.Origin.Address,
			Destination:       r.Destination.Address,
		}
		if r.RiskScore != nil {
			item.RiskScore = *r.RiskScore
		}
		if r.RiskLevel != nil {
			item.RiskLevel = *r.RiskLevel
		}
		for _, c := range models.Categories {
			item.RiskCounts[c.Short()] = 0
			if rd != nil {
				item.RiskCounts[c.Short()] = len(rd.Points(c))
			}
		}
		if rd != nil {
			for name, list := range rd.NearbyFacilities {
				item.FacilityCounts[name] = len(list)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

type VehicleUpdate struct {
	VehicleID   string            `json:"vehicle_id"`
	VehicleName string            `json:"vehicle_name"`
	Telemetry   *models.Telemetry `json:"telemetry"`
}

type RealTime struct {
	ActiveRoutes   []models.Route  `json:"active_routes"`
	WeatherAlerts  []weather.Alert `json:"weather_alerts"`
	VehicleUpdates []VehicleUpdate `json:"vehicle_updates"`
}

// RealTime lists routes touched in the last hour, current weather alerts and
// vehicles that reported telemetry in the last hour.
func (s *Service) RealTime(ctx context.Context, userID string) (*RealTime, error) {
	now := s.Now()
	since := now.Add(-RealTimeWindow)
	routes, _, err := s.Store.Routes.List(ctx, repository.RouteFilter{UserID: userID, UpdatedSince: since}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list active routes: %w", err)
	}
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].LastUpdated.After(routes[j].LastUpdated) })

	alerts, err := weather.Alerts(ctx, s.Store, userID, now)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.Store.Vehicles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	updates := []VehicleUpdate{}
	for _, v := range vehicles {
		t, err := s.Store.Telemetry.LatestByVehicle(ctx, v.ID.Hex())
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest telemetry: %w", err)
		}
		if t.Timestamp.Before(since) {
			continue
		}
		updates = append(updates, VehicleUpdate{VehicleID: v.ID.Hex(), VehicleName: v.Name, Telemetry: t})
	}
	return &RealTime{ActiveRoutes: routes, WeatherAlerts: alerts, VehicleUpdates: updates}, nil
}

func routeIDs(routes []models.Route) []string {
	ids := make([]string, 0, len(routes))
	for _, r := range routes {
		ids = append(ids, r.RouteID)
	}
	return ids
}

func addCounts(a, b risk.Counts) risk.Counts {
	return risk.Counts{High: a.High + b.High, Medium: a.Medium + b.Medium, Low: a.Low + b.Low}
}
