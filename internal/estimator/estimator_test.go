package estimator

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/maps"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/traffic"
	"journey-risk-api-server/internal/weather"
)

type fakeObserver struct {
	observeFn func(ctx context.Context, points []models.Location) ([]weather.Observation, error)
}

func (f *fakeObserver) Observe(ctx context.Context, points []models.Location) ([]weather.Observation, error) {
	return f.observeFn(ctx, points)
}

type fakeTraffic struct {
	atFn func(ctx context.Context, p models.Location) (traffic.Sample, error)
}

func (f *fakeTraffic) At(ctx context.Context, p models.Location) (traffic.Sample, error) {
	return f.atFn(ctx, p)
}

type fakeElevation struct {
	elevationFn func(ctx context.Context, points []models.Location) ([]maps.ElevationSample, error)
}

func (f *fakeElevation) Elevation(ctx context.Context, points []models.Location) ([]maps.ElevationSample, error) {
	return f.elevationFn(ctx, points)
}

func straight(n int) []models.Location {
	pts := make([]models.Location, n)
	for i := range pts {
		pts[i] = models.Location{Lat: 45 + float64(i)*0.001, Lng: 7}
	}
	return pts
}

// Monday noon: not night, not weekend.
var weekdayNoon = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func TestAccidentFactorsFallback(t *testing.T) {
	f := defaultAccidentFeatures(weekdayNoon)
	p := AccidentProbability(f)
	if math.Abs(p-0.1) > 1e-9 {
		t.Fatalf("baseline probability = %v, want 0.1", p)
	}
	got := AccidentFactors(f, p)
	if len(got) != 1 || got[0].Factor != "Low risk" {
		t.Errorf("factors = %+v", got)
	}
	if got := AccidentFactors(f, 0.5); got[0].Factor != "Moderate risk" {
		t.Errorf("factors at 0.5 = %+v", got)
	}
	if got := AccidentFactors(f, 0.75); got[0].Factor != "Multiple factors" {
		t.Errorf("factors at 0.75 = %+v", got)
	}
}

func TestAccidentFactorsNightWeekend(t *testing.T) {
	f := defaultAccidentFeatures(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)) // Saturday
	got := AccidentFactors(f, AccidentProbability(f))
	if len(got) != 2 || got[0].Factor != "Time of day" || got[1].Factor != "Weekend" {
		t.Errorf("factors = %+v", got)
	}
}

func TestAccidentEstimateSamplesEveryTenthPoint(t *testing.T) {
	obs := &fakeObserver{observeFn: func(_ context.Context, pts []models.Location) ([]weather.Observation, error) {
		out := make([]weather.Observation, len(pts))
		for i := range out {
			out[i] = weather.Observation{Location: pts[i], Temperature: 5, Visibility: 0.5}
		}
		return out, nil
	}}
	tr := &fakeTraffic{atFn: func(_ context.Context, p models.Location) (traffic.Sample, error) {
		return traffic.Sample{Location: p, CongestionLevel: 4, SpeedLimit: 30, RoadType: traffic.RoadIntersection}, nil
	}}
	a := &Accident{Weather: obs, Traffic: tr, Now: func() time.Time { return weekdayNoon }}

	got, err := a.Estimate(context.Background(), straight(25))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("points = %d, want 3", len(got))
	}
	for _, rp := range got {
		if rp.RiskLevel != models.RiskLevelHigh {
			t.Errorf("level = %s, want high", rp.RiskLevel)
		}
		if rp.Probability == nil || *rp.Probability != 0.77 {
			t.Errorf("probability = %v, want 0.77", rp.Probability)
		}
		if len(rp.Factors) != 3 {
			t.Errorf("factors = %+v", rp.Factors)
		}
	}
	if got[1].Location != straight(25)[10] {
		t.Errorf("second point = %+v", got[1].Location)
	}
}

func TestAccidentEstimateWithoutWeather(t *testing.T) {
	obs := &fakeObserver{observeFn: func(context.Context, []models.Location) ([]weather.Observation, error) {
		return nil, nil
	}}
	a := &Accident{Weather: obs, Now: func() time.Time { return weekdayNoon }}
	got, err := a.Estimate(context.Background(), straight(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RiskLevel != models.RiskLevelLow {
		t.Errorf("got %+v", got)
	}
}

func TestElevationGradients(t *testing.T) {
	base := models.Location{Lat: 45, Lng: 7}
	step := func(i int) models.Location { return models.Location{Lat: base.Lat + float64(i)*0.001, Lng: base.Lng} }
	src := &fakeElevation{elevationFn: func(context.Context, []models.Location) ([]maps.ElevationSample, error) {
		return []maps.ElevationSample{
			{Location: step(0), Elevation: 100},
			{Location: step(1), Elevation: 120}, // ~18% ascent
			{Location: step(2), Elevation: 108}, // ~10.8% descent
			{Location: step(3), Elevation: 116}, // ~7.2% ascent
			{Location: step(4), Elevation: 118}, // ~1.8%
			{Location: models.Location{Lat: step(4).Lat + 0.00001, Lng: base.Lng}, Elevation: 200}, // ~1 m away
		}, nil
	}}
	got, err := (&Elevation{Source: src}).Estimate(context.Background(), straight(6))
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		level, kind string
	}{
		{models.RiskLevelHigh, "Ascent"},
		{models.RiskLevelMedium, "Descent"},
		{models.RiskLevelLow, "Ascent"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d risks: %+v", len(got), got)
	}
	for i, w := range want {
		if got[i].RiskLevel != w.level || got[i].RiskType != w.kind {
			t.Errorf("risk %d = %s/%s, want %s/%s", i, got[i].RiskLevel, got[i].RiskType, w.level, w.kind)
		}
	}
	if *got[0].Distance != 111 {
		t.Errorf("distance = %v, want 111", *got[0].Distance)
	}
}

func TestBlindSpotCandidates(t *testing.T) {
	pts := straight(25)
	got := BlindSpotCandidates(pts)
	if len(got) != 2 {
		t.Fatalf("straight line candidates = %d, want 2", len(got))
	}

	// right-angle turn at index 5
	pts[6] = models.Location{Lat: pts[5].Lat, Lng: pts[5].Lng + 0.001}
	got = BlindSpotCandidates(pts)
	found := false
	for _, p := range got {
		if p == pts[5] {
			found = true
		}
	}
	if !found {
		t.Errorf("turn at %+v not among candidates %+v", pts[5], got)
	}
}

func TestRoadGeometryCurvature(t *testing.T) {
	pts := []models.Location{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}, {Lat: 2, Lng: 0}, {Lat: 2, Lng: 1}}
	if c := RoadGeometry(pts, 1).Curvature; math.Abs(c) > 1e-9 {
		t.Errorf("straight curvature = %v, want 0", c)
	}
	if c := RoadGeometry(pts, 2).Curvature; math.Abs(c-1) > 1e-9 {
		t.Errorf("right angle curvature = %v, want 1", c)
	}
	if !RoadGeometry(pts, 0).IsIntersection || RoadGeometry(pts, 1).IsIntersection {
		t.Error("intersection flag should mark every 10th candidate")
	}
}

func TestBlindSpotProbability(t *testing.T) {
	f := models.RoadFeatures{RoadWidth: 8, Visibility: 2, IsIntersection: true}
	if p := BlindSpotProbability(f, 100); math.Abs(p-0.65) > 1e-9 {
		t.Errorf("p = %v, want 0.65", p)
	}
	f = models.RoadFeatures{RoadWidth: 4, Curvature: 1.5, Gradient: 12, Visibility: 1, IsIntersection: true}
	if p := BlindSpotProbability(f, 400); p != 1 {
		t.Errorf("p = %v, want clamp to 1", p)
	}
}

func TestBlindSpotEstimateSkipsMissingElevation(t *testing.T) {
	src := &fakeElevation{elevationFn: func(context.Context, []models.Location) ([]maps.ElevationSample, error) {
		return nil, nil
	}}
	got, err := (&BlindSpot{Elevation: src}).Estimate(context.Background(), straight(50))
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestNetworkLevels(t *testing.T) {
	pts := make([]models.Location, 3000)
	for i := range pts {
		pts[i] = models.Location{Lat: 30 + float64(i)*0.0007, Lng: -90 + float64(i)*0.0003}
	}
	got, err := Network{}.Estimate(context.Background(), pts)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 100 {
		t.Errorf("too many lookups: %d", len(got))
	}
	for _, rp := range got {
		s := *rp.SignalStrength
		want := models.RiskLevelLow
		switch {
		case s < 20:
			want = models.RiskLevelHigh
		case s < 50:
			want = models.RiskLevelMedium
		}
		if s >= 70 || rp.RiskLevel != want {
			t.Errorf("signal %v reported as %s", s, rp.RiskLevel)
		}
		if rp.Provider == "" || rp.NetworkType == "" {
			t.Errorf("missing carrier info: %+v", rp)
		}
	}
	if a, b := CoverageAt(pts[0]), CoverageAt(pts[0]); a != b {
		t.Error("coverage not stable")
	}
}

func TestEcoZoneShape(t *testing.T) {
	n := 0
	for i := 0; i < 2000 && n < 20; i++ {
		p := models.Location{Lat: 10 + float64(i)*0.0137, Lng: 20 + float64(i)*0.0071}
		if !InEcoZone(p) {
			continue
		}
		n++
		z := EcoZoneAt(p)
		if !strings.HasSuffix(z.ZoneName, z.ZoneType) || len(strings.Fields(z.ZoneName)) < 4 {
			t.Errorf("zone name %q type %q", z.ZoneName, z.ZoneType)
		}
		if len(z.Restrictions) < 1 || len(z.Restrictions) > 3 {
			t.Errorf("restrictions = %v", z.Restrictions)
		}
		want := models.RiskLevelLow
		if len(z.Restrictions) >= 3 {
			want = models.RiskLevelMedium
		}
		if z.RiskLevel != want {
			t.Errorf("level = %s with %d restrictions", z.RiskLevel, len(z.Restrictions))
		}
	}
	if n == 0 {
		t.Fatal("no eco zones found in 2000 probes")
	}
}

func TestHotspotProbes(t *testing.T) {
	center := models.Location{Lat: 40, Lng: -74}
	probes := HotspotProbes(center, 10)
	if len(probes) != 9 || probes[8] != center {
		t.Fatalf("probes = %+v", probes)
	}
	if d := geo.HaversineKm(center, probes[0]); math.Abs(d-10) > 0.1 {
		t.Errorf("east probe at %.3f km", d)
	}
	if math.Abs(probes[2].Lat-(40+10.0/111)) > 1e-9 || math.Abs(probes[2].Lng+74) > 1e-9 {
		t.Errorf("north probe = %+v", probes[2])
	}
}

func TestHotspotLevels(t *testing.T) {
	for i := 0; i < 5000; i++ {
		p := models.Location{Lat: float64(i) * 0.01, Lng: 1}
		h, ok := HotspotAt(p)
		if !ok {
			continue
		}
		if h.AccidentCount < 5 || h.AccidentCount > 29 {
			t.Fatalf("count = %d", h.AccidentCount)
		}
		want := models.RiskLevelLow
		switch {
		case h.AccidentCount > 20 || h.FatalityRate > 5:
			want = models.RiskLevelHigh
		case h.AccidentCount > 10 || h.InjuryRate > 25:
			want = models.RiskLevelMedium
		}
		// rounding to one decimal can move a rate onto the boundary
		if h.RiskLevel != want && h.FatalityRate != 5 && h.InjuryRate != 25 {
			t.Errorf("hotspot %+v level %s, want %s", h, h.RiskLevel, want)
		}
	}
}

func TestRequirePointsShortCircuits(t *testing.T) {
	called := false
	e := RequirePoints(3, Func(func(context.Context, []models.Location) ([]models.RiskPoint, error) {
		called = true
		return nil, nil
	}))
	got, err := e.Estimate(context.Background(), straight(2))
	if err != nil || got == nil || len(got) != 0 || called {
		t.Errorf("got %v, %v, called=%v", got, err, called)
	}
}

func TestDefaultOrder(t *testing.T) {
	entries := Default(Deps{})
	if len(entries) != len(models.Categories) {
		t.Fatalf("entries = %d", len(entries))
	}
	for i, e := range entries {
		if e.Category != models.Categories[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Category, models.Categories[i])
		}
	}
}
