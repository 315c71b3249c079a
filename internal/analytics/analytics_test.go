package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"go.uber.org/zap"
)

var now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func newService(store *repository.Store) *Service {
	s := NewService(store, zap.NewNop())
	s.Now = func() time.Time { return now }
	return s
}

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		in   *string
		want float64
	}{
		{strPtr("12.3 km"), 12.3},
		{strPtr("1,204 km"), 1204},
		{strPtr("850 m"), 0.85},
		{strPtr("10 mi"), 16.09344},
		{strPtr("bogus"), 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := DistanceKm(tt.in); !near(got, tt.want) {
			t.Errorf("DistanceKm(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2 hours 5 mins", 125},
		{"1 hour 1 min", 61},
		{"1 day 2 hours", 1560},
		{"45 mins", 45},
		{"about an hour", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := DurationMinutes(&tt.in); got != tt.want {
			t.Errorf("DurationMinutes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if DurationMinutes(nil) != 0 {
		t.Error("nil duration should be zero")
	}
}

func TestBreakdownProbabilityDefaults(t *testing.T) {
	f := NewBreakdownFeatures(&models.Vehicle{Type: "car"}, nil, now)
	if f.VehicleAge != 5 || f.DaysSinceService != 365 || f.AvgMaintenanceInterval != 180 {
		t.Fatalf("defaults = %+v", f)
	}
	// 0.05 base + 0.01 age + 0.073 days since service
	if got := BreakdownProbability(f); !near(got, 0.133) {
		t.Errorf("got %v, want 0.133", got)
	}
}

func TestBreakdownProbabilityUnhealthyTruck(t *testing.T) {
	serviced := now.AddDate(0, 0, -500)
	v := &models.Vehicle{
		Type:        "truck",
		Year:        intPtr(now.Year() - 20),
		Maintenance: models.Maintenance{LastServiceDate: &serviced},
	}
	tel := &models.Telemetry{EngineTemp: f64Ptr(120), OilPressure: f64Ptr(10), BatteryVoltage: f64Ptr(10)}
	f := NewBreakdownFeatures(v, tel, now)
	if f.DaysSinceService != 500 {
		t.Fatalf("days since service = %d", f.DaysSinceService)
	}
	want := 0.05 + 0.04 + 0.1 + 0.03 + 0.05 + 0.03 + 0.01
	if got := BreakdownProbability(f); !near(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	f.VehicleAge = 1000
	if got := BreakdownProbability(f); got != 1 {
		t.Errorf("probability not clamped: %v", got)
	}
}

func TestBreakdownMaintenanceHistory(t *testing.T) {
	v := &models.Vehicle{Type: "car", Maintenance: models.Maintenance{History: []models.MaintenanceRecord{
		{Date: now.AddDate(0, 0, -10)},
		{Date: now.AddDate(0, 0, -400)},
		{Date: now.AddDate(0, 0, -100)},
	}}}
	f := NewBreakdownFeatures(v, nil, now)
	if f.MaintenanceIssues != 2 {
		t.Errorf("maintenance issues = %d, want 2", f.MaintenanceIssues)
	}
	// intervals 300 and 90 days
	if !near(f.AvgMaintenanceInterval, 195) {
		t.Errorf("average interval = %v, want 195", f.AvgMaintenanceInterval)
	}
}

func seed(t *testing.T, store *repository.Store, r models.Route, rd *models.RiskData) {
	t.Helper()
	ctx := context.Background()
	if r.LastUpdated.IsZero() {
		r.LastUpdated = r.CreatedAt
	}
	if err := store.Routes.Create(ctx, &r); err != nil {
		t.Fatal(err)
	}
	if rd == nil {
		rd = models.NewRiskData(r.RouteID, r.CreatedAt)
	}
	rd.RouteID = r.RouteID
	if err := store.RiskData.Create(ctx, rd); err != nil {
		t.Fatal(err)
	}
}

func points(levels ...string) []models.RiskPoint {
	out := make([]models.RiskPoint, 0, len(levels))
	for i, l := range levels {
		out = append(out, models.RiskPoint{Location: models.Location{Lat: float64(i), Lng: 1}, RiskLevel: l})
	}
	return out
}

func completed(id, user string, created time.Time, level string, score float64) models.Route {
	return models.Route{
		RouteID:   id,
		UserID:    user,
		Name:      "route " + id,
		Status:    models.RouteStatusCompleted,
		RiskLevel: strPtr(level),
		RiskScore: f64Ptr(score),
		CreatedAt: created,
	}
}

func TestSummary(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	r := completed("r1", "u1", now.Add(-48*time.Hour), models.RiskLevelHigh, 8.5)
	r.Distance, r.Duration = strPtr("10.5 km"), strPtr("1 hours 30 mins")
	rd := models.NewRiskData("r1", now)
	rd.AccidentRisks = points(models.RiskLevelHigh, models.RiskLevelLow)
	rd.BlindSpots = points(models.RiskLevelHigh)
	seed(t, store, r, rd)
	seed(t, store, models.Route{RouteID: "r2", UserID: "u1", Status: models.RouteStatusProcessing, CreatedAt: now.Add(-time.Hour)}, nil)
	seed(t, store, completed("old", "u1", now.AddDate(0, 0, -40), models.RiskLevelLow, 1), nil)
	seed(t, store, completed("other", "u2", now.Add(-time.Hour), models.RiskLevelLow, 1), nil)

	v := &models.Vehicle{UserID: "u1", Name: "Van", Type: "truck"}
	if err := store.Vehicles.Create(ctx, v); err != nil {
		t.Fatal(err)
	}
	if err := store.Telemetry.Add(ctx, &models.Telemetry{VehicleID: v.ID.Hex(), Timestamp: now, Speed: f64Ptr(50)}); err != nil {
		t.Fatal(err)
	}

	got, err := newService(store).Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	s := got.Summary
	if s.TotalRoutes != 2 || s.TotalDistance != 10.5 || s.TotalDuration != 1.5 {
		t.Errorf("totals = %+v", s)
	}
	if s.RiskDistribution["high"] != 1 || s.RiskDistribution["unknown"] != 1 || s.RiskDistribution["low"] != 0 {
		t.Errorf("distribution = %v", s.RiskDistribution)
	}
	if s.RiskPointsByType["accident"] != 2 || s.RiskPointsByType["blind_spot"] != 1 || s.RiskPointsByType["eco_zone"] != 0 {
		t.Errorf("points by type = %v", s.RiskPointsByType)
	}
	if s.TotalVehicles != 1 || got.LatestTelemetry[v.ID.Hex()] == nil {
		t.Errorf("vehicles = %d, telemetry = %v", s.TotalVehicles, got.LatestTelemetry)
	}
	if len(got.RecentRoutes) != 2 || got.RecentRoutes[0].RouteID != "r2" {
		t.Errorf("recent routes should be newest first: %+v", got.RecentRoutes)
	}
}

func TestRiskAnalysis(t *testing.T) {
	store := repository.NewMemoryStore()
	morning := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	night := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)

	rd := models.NewRiskData("a", now)
	rd.WeatherHazards = points(models.RiskLevelHigh, models.RiskLevelMedium)
	rd.EcoSensitiveZones = points(models.RiskLevelLow)
	rd.NearbyFacilities[models.FacilityHospitals] = []models.Facility{
		{PlaceID: "h1", Distance: 800},
		{PlaceID: "h2", Distance: 4000},
		{PlaceID: "h3", Distance: 9000},
	}
	seed(t, store, completed("a", "u1", morning, models.RiskLevelHigh, 9), rd)
	seed(t, store, completed("b", "u1", night, models.RiskLevelLow, 2), nil)
	seed(t, store, completed("stale", "u1", now.AddDate(0, 0, -10), models.RiskLevelLow, 2), nil)

	got, err := newService(store).RiskAnalysis(context.Background(), "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RiskTrends) != 2 || got.RiskTrends[0].RouteID != "a" || got.RiskTrends[1].RouteID != "b" {
		t.Errorf("trends should be oldest first within 7 days: %+v", got.RiskTrends)
	}
	if c := got.RiskCategories["weather"]; c.High != 1 || c.Medium != 1 {
		t.Errorf("weather counts = %+v", c)
	}
	if c := got.RiskCategories["eco_zone"]; c.Low != 1 {
		t.Errorf("eco zone counts = %+v", c)
	}
	if len(got.RiskHeatmap) != 3 || got.RiskHeatmap[0].Weight != 3 || got.RiskHeatmap[2].Weight != 1 {
		t.Errorf("heatmap = %+v", got.RiskHeatmap)
	}
	if got.TimeAnalysis["morning"].High != 1 || got.TimeAnalysis["night"].Low != 1 || got.TimeAnalysis["evening"].Total() != 0 {
		t.Errorf("time analysis = %+v", got.TimeAnalysis)
	}
	if b := got.FacilitiesStats[models.FacilityHospitals]; b != (DistanceBands{Under1km: 1, OneTo5km: 1, Over5km: 1}) {
		t.Errorf("hospital bands = %+v", b)
	}
}

func TestTimeOfDay(t *testing.T) {
	for hour, want := range map[int]string{0: "night", 5: "night", 6: "morning", 12: "afternoon", 17: "evening", 22: "night"} {
		if got := TimeOfDay(hour); got != want {
			t.Errorf("TimeOfDay(%d) = %s, want %s", hour, got, want)
		}
	}
}

func TestVehicleAnalysis(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	v := &models.Vehicle{UserID: "u1", Name: "Van", Type: "car"}
	if err := store.Vehicles.Create(ctx, v); err != nil {
		t.Fatal(err)
	}
	r := completed("r1", "u1", now.Add(-time.Hour), models.RiskLevelMedium, 6.5)
	r.VehicleID = strPtr(v.ID.Hex())
	r.Distance, r.Duration = strPtr("20 km"), strPtr("30 mins")
	seed(t, store, r, nil)
	seed(t, store, completed("r2", "u1", now.Add(-time.Hour), models.RiskLevelHigh, 9), nil)

	for i := 0; i < 25; i++ {
		ts := now.Add(time.Duration(i-25) * time.Minute)
		if err := store.Telemetry.Add(ctx, &models.Telemetry{
			VehicleID:  v.ID.Hex(),
			Timestamp:  ts,
			FuelLevel:  f64Ptr(float64(100 - i)),
			EngineTemp: f64Ptr(90),
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := newService(store).VehicleAnalysis(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("reports = %d", len(got))
	}
	rep := got[0]
	if rep.Stats.TotalRoutes != 1 || rep.Stats.TotalDistance != 20 || rep.Stats.TotalDuration != 0.5 || rep.Stats.RiskLevels.Medium != 1 {
		t.Errorf("stats = %+v", rep.Stats)
	}
	if rep.Stats.BreakdownProbability != 13.3 {
		t.Errorf("breakdown probability = %v, want 13.3", rep.Stats.BreakdownProbability)
	}
	fuel := rep.Telemetry.FuelData
	if len(fuel) != 20 || fuel[19].FuelLevel != 76 || fuel[0].FuelLevel != 95 {
		t.Errorf("fuel series should hold the latest 20 samples in time order: first %v last %v (n=%d)",
			fuel[0].FuelLevel, fuel[len(fuel)-1].FuelLevel, len(fuel))
	}
}

func TestCompareSkipsForeignAndMissingRoutes(t *testing.T) {
	store := repository.NewMemoryStore()
	r := completed("mine", "u1", now, models.RiskLevelLow, 2)
	r.Origin, r.Destination = models.Place{Address: "A"}, models.Place{Address: "B"}
	r.Distance = strPtr("5 km")
	rd := models.NewRiskData("mine", now)
	rd.AccidentRisks = points(models.RiskLevelLow, models.RiskLevelLow)
	rd.NearbyFacilities[models.FacilityFuelStations] = []models.Facility{{PlaceID: "f"}}
	seed(t, store, r, rd)
	seed(t, store, completed("theirs", "u2", now, models.RiskLevelHigh, 9), nil)

	svc := newService(store)
	got, err := svc.Compare(context.Background(), "u1", false, []string{"mine", "theirs", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RouteID != "mine" {
		t.Fatalf("comparison = %+v", got)
	}
	item := got[0]
	if item.Distance != 5 || item.RiskCounts["accident"] != 2 || item.FacilityCounts[models.FacilityFuelStations] != 1 || item.Origin != "A" {
		t.Errorf("item = %+v", item)
	}

	got, err = svc.Compare(context.Background(), "admin", true, []string{"mine", "theirs"})
	if err != nil || len(got) != 2 {
		t.Errorf("admin comparison = %d items, err %v", len(got), err)
	}
}

func TestRealTime(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	rd := models.NewRiskData("fresh", now)
	rd.WeatherHazards = []models.RiskPoint{{RiskLevel: models.RiskLevelHigh, WeatherCondition: "Thunderstorm"}}
	fresh := completed("fresh", "u1", now.Add(-2*time.Hour), models.RiskLevelHigh, 9)
	fresh.LastUpdated = now.Add(-10 * time.Minute)
	seed(t, store, fresh, rd)
	seed(t, store, completed("quiet", "u1", now.Add(-3*time.Hour), models.RiskLevelLow, 1), nil)

	live := &models.Vehicle{UserID: "u1", Name: "Live"}
	idle := &models.Vehicle{UserID: "u1", Name: "Idle"}
	for _, v := range []*models.Vehicle{live, idle} {
		if err := store.Vehicles.Create(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	_ = store.Telemetry.Add(ctx, &models.Telemetry{VehicleID: live.ID.Hex(), Timestamp: now.Add(-5 * time.Minute)})
	_ = store.Telemetry.Add(ctx, &models.Telemetry{VehicleID: idle.ID.Hex(), Timestamp: now.Add(-2 * time.Hour)})

	got, err := newService(store).RealTime(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ActiveRoutes) != 1 || got.ActiveRoutes[0].RouteID != "fresh" {
		t.Errorf("active routes = %+v", got.ActiveRoutes)
	}
	if len(got.WeatherAlerts) != 1 || got.WeatherAlerts[0].Description != "Severe weather: Thunderstorm" {
		t.Errorf("alerts = %+v", got.WeatherAlerts)
	}
	if len(got.VehicleUpdates) != 1 || got.VehicleUpdates[0].VehicleName != "Live" {
		t.Errorf("vehicle updates = %+v", got.VehicleUpdates)
	}
}
