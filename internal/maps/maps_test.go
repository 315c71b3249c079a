package maps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"journey-risk-api-server/internal/models"
)

func TestSampleWaypointsKeepsEnds(t *testing.T) {
	pts := make([]models.Location, 25)
	for i := range pts {
		pts[i] = models.Location{Lat: float64(i)}
	}
	got := SampleWaypoints(pts)
	want := []float64{0, 10, 20, 24}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Lat != w {
			t.Errorf("got[%d] = %v, want %v", i, got[i].Lat, w)
		}
	}
}

func TestQueryPrefersCoordinates(t *testing.T) {
	lat, lng := 1.5, -2.25
	if q := Query(models.Place{Address: "x", Lat: &lat, Lng: &lng}); q != "1.500000,-2.250000" {
		t.Errorf("Query = %q", q)
	}
	if q := Query(models.Place{Address: "Main St"}); q != "Main St" {
		t.Errorf("Query = %q", q)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		60:   "1 min",
		1500: "25 mins",
		3600: "1 hour 0 mins",
		8100: "2 hours 15 mins",
	}
	for secs, want := range cases {
		if got := FormatDuration(secs); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", secs, got, want)
		}
	}
}

func TestSyntheticDirectionsDeterministic(t *testing.T) {
	p := NewSyntheticProvider()
	ctx := context.Background()
	a, err := p.Directions(ctx, "Denver, CO", "Boulder, CO")
	if err != nil {
		t.Fatalf("Directions: %v", err)
	}
	b, _ := p.Directions(ctx, "Denver, CO", "Boulder, CO")
	if a.Polyline != b.Polyline || a.Distance != b.Distance {
		t.Error("synthetic directions are not deterministic")
	}
	if len(a.Waypoints) < 2 {
		t.Errorf("waypoints = %d", len(a.Waypoints))
	}
	if _, err := p.Directions(ctx, "same", "same"); !errors.Is(err, ErrNoRoute) {
		t.Errorf("coincident ends err = %v", err)
	}
}

func TestSyntheticPlacesAreNestedAcrossRadii(t *testing.T) {
	p := NewSyntheticProvider()
	ctx := context.Background()
	for _, c := range []models.Location{{Lat: 40, Lng: -105}, {Lat: 39.5, Lng: -104.2}, {Lat: 41.1, Lng: -106.7}} {
		small, _ := p.NearbyPlaces(ctx, c, "hospital", 1000)
		large, _ := p.NearbyPlaces(ctx, c, "hospital", 10000)
		ids := map[string]bool{}
		for _, pl := range large {
			ids[pl.PlaceID] = true
			if pl.Distance > 10000.5 {
				t.Errorf("place outside radius: %v m", pl.Distance)
			}
		}
		for _, pl := range small {
			if !ids[pl.PlaceID] {
				t.Errorf("place %s in 1 km result but not in 10 km result", pl.PlaceID)
			}
		}
	}
}

func TestGoogleDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/directions/json" || r.URL.Query().Get("key") != "k" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"status":"OK","routes":[{"overview_polyline":{"points":"_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"},
			"legs":[{"distance":{"text":"700 km","value":700000},"duration":{"text":"7 hours 2 mins","value":25320},
			"start_location":{"lat":38.5,"lng":-120.2},"end_location":{"lat":43.252,"lng":-126.453}}]}]}`))
	}))
	defer srv.Close()

	c := NewGoogleClient("k", time.Second).WithBaseURL(srv.URL)
	d, err := c.Directions(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Directions: %v", err)
	}
	if d.Distance != "700 km" || d.Duration != "7 hours 2 mins" || len(d.Waypoints) != 3 {
		t.Errorf("directions = %+v", d)
	}
}

func TestGoogleDirectionsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	}))
	defer srv.Close()

	c := NewGoogleClient("k", time.Second).WithBaseURL(srv.URL)
	if _, err := c.Directions(context.Background(), "a", "b"); !errors.Is(err, ErrNoRoute) {
		t.Errorf("err = %v, want ErrNoRoute", err)
	}
}

func TestGoogleNearbyPlacesComputesDistance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "hospital" || r.URL.Query().Get("radius") != "5000" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"H","vicinity":"v","geometry":{"location":{"lat":40.01,"lng":-105}}}]}`))
	}))
	defer srv.Close()

	c := NewGoogleClient("k", time.Second).WithBaseURL(srv.URL)
	places, err := c.NearbyPlaces(context.Background(), models.Location{Lat: 40, Lng: -105}, "hospital", 5000)
	if err != nil {
		t.Fatalf("NearbyPlaces: %v", err)
	}
	if len(places) != 1 || places[0].Distance < 1100 || places[0].Distance > 1125 {
		t.Errorf("places = %+v", places)
	}
}
