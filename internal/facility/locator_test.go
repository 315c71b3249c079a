package facility

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"journey-risk-api-server/internal/maps"
	"journey-risk-api-server/internal/models"

	"go.uber.org/zap"
)

type fakePlaces struct {
	calls        int32
	nearbyPlaces func(center models.Location, placeType string, radius int) ([]maps.Place, error)
}

func (f *fakePlaces) NearbyPlaces(_ context.Context, center models.Location, placeType string, radius int) ([]maps.Place, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.nearbyPlaces(center, placeType, radius)
}

func route(n int) []models.Location {
	pts := make([]models.Location, n)
	for i := range pts {
		pts[i] = models.Location{Lat: 48 + float64(i)*0.01, Lng: 2}
	}
	return pts
}

func TestFindDeduplicatesAcrossRadiiAndPoints(t *testing.T) {
	fp := &fakePlaces{nearbyPlaces: func(center models.Location, placeType string, radius int) ([]maps.Place, error) {
		// the same hospital is visible from every point and radius
		if placeType == "hospital" {
			return []maps.Place{{PlaceID: "h1", Name: "General", Distance: float64(radius) / 2}}, nil
		}
		if placeType == "gas_station" {
			return []maps.Place{{PlaceID: fmt.Sprintf("g-%d", radius)}}, nil
		}
		return nil, nil
	}}
	loc := NewLocator(fp, zap.NewNop())

	got, err := loc.Find(context.Background(), route(30))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	// step = 3 -> 10 points, 5 categories, 3 radii
	if calls := atomic.LoadInt32(&fp.calls); calls != 150 {
		t.Errorf("lookups = %d, want 150", calls)
	}
	if len(got[models.FacilityHospitals]) != 1 {
		t.Fatalf("hospitals = %+v", got[models.FacilityHospitals])
	}
	if d := got[models.FacilityHospitals][0].Distance; d != 500 {
		t.Errorf("distance = %v, want first match at 1000 m radius", d)
	}
	if len(got[models.FacilityFuelStations]) != 3 {
		t.Errorf("fuel stations = %+v", got[models.FacilityFuelStations])
	}
	for _, c := range models.FacilityCategories {
		if got[c] == nil {
			t.Errorf("category %s missing", c)
		}
	}
}

func TestFindSkipsFailedLookups(t *testing.T) {
	fp := &fakePlaces{nearbyPlaces: func(_ models.Location, placeType string, _ int) ([]maps.Place, error) {
		if placeType == "police" {
			return nil, errors.New("quota exceeded")
		}
		return []maps.Place{{PlaceID: placeType}}, nil
	}}
	got, err := NewLocator(fp, zap.NewNop()).Find(context.Background(), route(3))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got[models.FacilityPoliceStations]) != 0 || len(got[models.FacilityRepairShops]) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestFindEmptyRoute(t *testing.T) {
	fp := &fakePlaces{nearbyPlaces: func(models.Location, string, int) ([]maps.Place, error) {
		t.Fatal("no lookup expected")
		return nil, nil
	}}
	got, err := NewLocator(fp, zap.NewNop()).Find(context.Background(), nil)
	if err != nil || len(got) != len(models.FacilityCategories) {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestFindWithSyntheticProviderHasUniqueIDs(t *testing.T) {
	got, err := NewLocator(maps.NewSyntheticProvider(), zap.NewNop()).Find(context.Background(), route(40))
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, list := range got {
		for _, f := range list {
			if seen[f.PlaceID] {
				t.Fatalf("duplicate place %s", f.PlaceID)
			}
			seen[f.PlaceID] = true
		}
	}
}
