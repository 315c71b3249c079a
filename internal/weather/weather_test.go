package weather

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"journey-risk-api-server/internal/cache"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"go.uber.org/zap"
)

type fakeSource struct {
	calls int32
	fn    func(loc models.Location) (*Observation, error)
}

func (f *fakeSource) Current(_ context.Context, loc models.Location) (*Observation, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(loc)
}

func line(n int) []models.Location {
	pts := make([]models.Location, n)
	for i := range pts {
		pts[i] = models.Location{Lat: 40 + float64(i)*0.01, Lng: -105}
	}
	return pts
}

func TestSamplePoints(t *testing.T) {
	if got := SamplePoints(line(10)); len(got) != 3 || got[1] != line(10)[5] {
		t.Errorf("short route samples = %+v", got)
	}
	if got := SamplePoints(line(61)); len(got) != 4 {
		t.Errorf("long route samples = %d, want 4", len(got))
	}
	if got := SamplePoints(line(2)); len(got) != 1 {
		t.Errorf("two point route samples = %d, want 1", len(got))
	}
}

func TestInterpolateSingleSample(t *testing.T) {
	pts := line(5)
	out := Interpolate(pts, []Observation{{Temperature: 3}})
	if len(out) != 5 {
		t.Fatalf("len = %d", len(out))
	}
	for _, o := range out {
		if o.Temperature != 3 {
			t.Errorf("temperature = %v", o.Temperature)
		}
	}
}

func TestInterpolateBlendsDistantSamples(t *testing.T) {
	a := Observation{Location: models.Location{Lat: 40, Lng: -105}, Temperature: 0, Condition: "Clear"}
	b := Observation{Location: models.Location{Lat: 41, Lng: -105}, Temperature: 30, Condition: "Rain"}
	// one quarter of the way from a to b, ~27.8 km from a
	p := models.Location{Lat: 40.25, Lng: -105}

	out := Interpolate([]models.Location{p, a.Location}, []Observation{a, b})
	// d1/(d1+d2) = 0.25, so w1 = 0.75 and w2 = 0.25
	if math.Abs(out[0].Temperature-7.5) > 0.05 {
		t.Errorf("blended temperature = %v, want 7.5", out[0].Temperature)
	}
	if out[0].Condition != "Clear" {
		t.Errorf("condition = %q, want nearest sample's", out[0].Condition)
	}
	if out[1].Temperature != 0 {
		t.Errorf("point on a sample should copy it, got %v", out[1].Temperature)
	}
}

func TestHazardsThresholds(t *testing.T) {
	obs := []Observation{
		{Temperature: 10, Visibility: 10},                    // 0.1, skipped
		{Temperature: -2, Visibility: 10},                    // 0.4 medium
		{Temperature: 10, Visibility: 0.5, Description: "fog"}, // 0.7 high
		{Temperature: 10, Visibility: 2.5},                   // 0.3 low
	}
	got := Hazards(obs)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{models.RiskLevelMedium, models.RiskLevelHigh, models.RiskLevelLow}
	for i, w := range want {
		if got[i].RiskLevel != w {
			t.Errorf("hazard %d level = %s, want %s", i, got[i].RiskLevel, w)
		}
	}
	types := map[string]bool{}
	for _, h := range got[1].HazardTypes {
		types[h.Type] = true
	}
	if !types["Severe visibility reduction"] || !types["Fog"] {
		t.Errorf("hazard types = %+v", got[1].HazardTypes)
	}
}

func TestHazardTypesPrecipitationFallback(t *testing.T) {
	ht := HazardTypes(Observation{Temperature: 5, Visibility: 10, Precipitation: 1, Condition: "Drizzle"})
	if len(ht) != 1 || ht[0].Type != "Precipitation" || ht[0].Description != "Drizzle may affect road conditions" {
		t.Errorf("hazard types = %+v", ht)
	}
}

func TestRefreshHazards(t *testing.T) {
	obs := []Observation{
		{Temperature: 10, Visibility: 10},                 // not hazardous
		{Temperature: 10, Visibility: 0.5},                // high
		{Temperature: -6, Visibility: 10},                 // medium
		{Temperature: 10, Visibility: 10, WindSpeed: 16},  // low
	}
	got := RefreshHazards(obs)
	want := []string{models.RiskLevelHigh, models.RiskLevelMedium, models.RiskLevelLow}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, w := range want {
		if got[i].RiskLevel != w {
			t.Errorf("refresh %d = %s, want %s", i, got[i].RiskLevel, w)
		}
	}
}

func TestObserveCachesAndSkipsFailures(t *testing.T) {
	src := &fakeSource{fn: func(loc models.Location) (*Observation, error) {
		if loc.Lat > 40.5 {
			return nil, errors.New("upstream down")
		}
		return &Observation{Location: loc, Temperature: 12}, nil
	}}
	svc := NewService(src, cache.NewMemoryCache(60, 120), time.Minute, nil, zap.NewNop())
	pts := line(100) // samples at 0,20,40,60,80

	out, err := svc.Observe(context.Background(), pts)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(out) != len(pts) {
		t.Fatalf("len = %d, want %d", len(out), len(pts))
	}
	first := atomic.LoadInt32(&src.calls)
	_, _ = svc.Observe(context.Background(), pts)
	// failed samples are retried, successful ones come from cache
	if got := atomic.LoadInt32(&src.calls) - first; got != 2 {
		t.Errorf("second pass made %d upstream calls, want 2", got)
	}
}

func TestOpenWeatherClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("units") != "metric" || r.URL.Query().Get("appid") != "key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"main":{"temp":-3.2,"feels_like":-7,"humidity":80,"pressure":1000},
			"wind":{"speed":6,"deg":90},"clouds":{"all":90},"visibility":2500,
			"snow":{"1h":1.5},"weather":[{"main":"Snow","description":"light snow","icon":"13d"}]}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("key", time.Second).WithBaseURL(srv.URL)
	obs, err := c.Current(context.Background(), models.Location{Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if obs.Visibility != 2.5 || obs.Precipitation != 1.5 || obs.Condition != "Snow" {
		t.Errorf("observation = %+v", obs)
	}
}

func TestSyntheticSourceIsStable(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	s := SyntheticSource{Now: func() time.Time { return now }}
	loc := models.Location{Lat: 39.7392, Lng: -104.9903}
	a, _ := s.Current(context.Background(), loc)
	b, _ := s.Current(context.Background(), loc)
	if a.Temperature != b.Temperature || a.Condition != b.Condition {
		t.Error("synthetic weather differs between calls")
	}
	if a.Visibility < 0 || a.Visibility > 20 {
		t.Errorf("visibility out of range: %v", a.Visibility)
	}
}

func TestAlertsOnlyHighHazardsOnRecentCompletedRoutes(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	add := func(id, status string, created time.Time, level string) {
		_ = store.Routes.Create(ctx, &models.Route{RouteID: id, UserID: "u1", Status: status, CreatedAt: created})
		rd := models.NewRiskData(id, created)
		rd.WeatherHazards = []models.RiskPoint{{RiskLevel: level, WeatherCondition: "Snow"}}
		_ = store.RiskData.Create(ctx, rd)
	}
	add("aaaaaaaaaaaa", models.RouteStatusCompleted, now.Add(-time.Hour), models.RiskLevelHigh)
	add("bbbbbbbbbbbb", models.RouteStatusCompleted, now.Add(-time.Hour), models.RiskLevelMedium)
	add("cccccccccccc", models.RouteStatusCompleted, now.Add(-48*time.Hour), models.RiskLevelHigh)
	add("dddddddddddd", models.RouteStatusProcessing, now.Add(-time.Hour), models.RiskLevelHigh)

	alerts, err := Alerts(ctx, store, "u1", now)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %+v", alerts)
	}
	a := alerts[0]
	if a.RouteName != "Route aaaaaaaa" || a.Description != "Severe weather: Snow" || a.AlertType != "weather" {
		t.Errorf("alert = %+v", a)
	}
}
