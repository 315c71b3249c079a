package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/weather"

	"go.uber.org/zap"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	s := New(zap.NewNop())
	job := &countingJob{err: errors.New("keeps going")}
	s.Every(5*time.Millisecond, job)
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for job.runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	if n := job.runs.Load(); n < 3 {
		t.Fatalf("runs = %d, want at least 3", n)
	}

	after := job.runs.Load()
	time.Sleep(20 * time.Millisecond)
	if job.runs.Load() != after {
		t.Error("job ran after Stop")
	}
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	s := New(zap.NewNop())
	job := &countingJob{}
	s.Every(0, job)
	s.Start(context.Background())
	s.Stop()
	if job.runs.Load() != 0 {
		t.Errorf("disabled job ran %d times", job.runs.Load())
	}
}

type fakeObserver struct {
	observeFn func(points []models.Location) ([]weather.Observation, error)
}

func (f *fakeObserver) Observe(_ context.Context, points []models.Location) ([]weather.Observation, error) {
	return f.observeFn(points)
}

type capturePublisher struct {
	mu   sync.Mutex
	sent map[string]interface{}
}

func (p *capturePublisher) Publish(channel string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = map[string]interface{}{}
	}
	p.sent[channel] = data
}

func TestWeatherRefreshRewritesHazards(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	wps := []models.Location{{Lat: 1, Lng: 1}, {Lat: 1.1, Lng: 1.1}, {Lat: 1.2, Lng: 1.2}}

	routes := []models.Route{
		{RouteID: "active", Status: models.RouteStatusCompleted, Waypoints: wps, CreatedAt: now.Add(-2 * time.Hour)},
		{RouteID: "old", Status: models.RouteStatusCompleted, Waypoints: wps, CreatedAt: now.Add(-48 * time.Hour)},
		{RouteID: "pending", Status: models.RouteStatusProcessing, Waypoints: wps, CreatedAt: now.Add(-time.Hour)},
	}
	for i := range routes {
		if err := store.Routes.Create(ctx, &routes[i]); err != nil {
			t.Fatal(err)
		}
		if err := store.RiskData.Create(ctx, models.NewRiskData(routes[i].RouteID, now)); err != nil {
			t.Fatal(err)
		}
	}

	var observed int
	obs := &fakeObserver{observeFn: func(points []models.Location) ([]weather.Observation, error) {
		observed++
		out := make([]weather.Observation, len(points))
		for i, p := range points {
			out[i] = weather.Observation{Location: p, Temperature: 10, Visibility: 10}
		}
		out[1].Visibility = 0.5
		out[1].Condition = "Fog"
		return out, nil
	}}
	pub := &capturePublisher{}
	job := NewWeatherRefresh(store, obs, pub, zap.NewNop())
	job.Now = func() time.Time { return now }

	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if observed != 1 {
		t.Errorf("observed %d routes, want only the active completed one", observed)
	}

	rd, err := store.RiskData.Get(ctx, "active")
	if err != nil {
		t.Fatal(err)
	}
	if len(rd.WeatherHazards) != 1 || rd.WeatherHazards[0].RiskLevel != models.RiskLevelHigh {
		t.Errorf("hazards = %+v", rd.WeatherHazards)
	}
	if _, ok := pub.sent["weather_update_active"]; !ok || len(pub.sent) != 1 {
		t.Errorf("published = %v", pub.sent)
	}
}

func TestWeatherRefreshSkipsFailedRoutes(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	r := &models.Route{RouteID: "r", Status: models.RouteStatusCompleted, Waypoints: []models.Location{{Lat: 1, Lng: 1}}, CreatedAt: now}
	if err := store.Routes.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	obs := &fakeObserver{observeFn: func([]models.Location) ([]weather.Observation, error) {
		return nil, errors.New("upstream down")
	}}
	pub := &capturePublisher{}
	if err := NewWeatherRefresh(store, obs, pub, zap.NewNop()).Run(ctx); err != nil {
		t.Fatalf("a failing route must not fail the job: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Errorf("published = %v", pub.sent)
	}
}
