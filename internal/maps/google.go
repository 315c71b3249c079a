package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

const (
	defaultGoogleBaseURL  = "https://maps.googleapis.com/maps/api"
	maxElevationBatchSize = 100
)

// GoogleClient talks to the Directions, Elevation and Places web services.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGoogleClient(apiKey string, timeout time.Duration) *GoogleClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleClient{
		apiKey:     apiKey,
		baseURL:    defaultGoogleBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at another host. Used by tests.
func (c *GoogleClient) WithBaseURL(u string) *GoogleClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *GoogleClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l latLng) location() models.Location { return models.Location{Lat: l.Lat, Lng: l.Lng} }

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance      textValue `json:"distance"`
			Duration      textValue `json:"duration"`
			StartLocation latLng    `json:"start_location"`
			EndLocation   latLng    `json:"end_location"`
		} `json:"legs"`
	} `json:"routes"`
}

func (c *GoogleClient) Directions(ctx context.Context, origin, destination string) (*Directions, error) {
	var resp directionsResponse
	params := url.Values{"origin": {origin}, "destination": {destination}, "alternatives": {"true"}}
	if err := c.get(ctx, "/directions/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" || len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return nil, fmt.Errorf("directions status %s: %w", resp.Status, ErrNoRoute)
	}

	route := resp.Routes[0]
	leg := route.Legs[0]
	points, err := geo.DecodePolyline(route.OverviewPolyline.Points)
	if err != nil {
		return nil, err
	}
	return &Directions{
		Distance:        leg.Distance.Text,
		Duration:        leg.Duration.Text,
		DistanceMeters:  leg.Distance.Value,
		DurationSeconds: leg.Duration.Value,
		Polyline:        route.OverviewPolyline.Points,
		Waypoints:       SampleWaypoints(points),
		Start:           leg.StartLocation.location(),
		End:             leg.EndLocation.location(),
	}, nil
}

type elevationResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// Elevation queries in batches of 100. A failing batch is skipped, like the rest of the
// estimators treat provider errors, and only a total failure is returned as an error.
func (c *GoogleClient) Elevation(ctx context.Context, points []models.Location) ([]ElevationSample, error) {
	out := make([]ElevationSample, 0, len(points))
	var lastErr error
	for i := 0; i < len(points); i += maxElevationBatchSize {
		end := i + maxElevationBatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[i:end]

		locs := make([]string, 0, len(batch))
		for _, p := range batch {
			locs = append(locs, strconv.FormatFloat(p.Lat, 'f', 6, 64)+","+strconv.FormatFloat(p.Lng, 'f', 6, 64))
		}

		var resp elevationResponse
		if err := c.get(ctx, "/elevation/json", url.Values{"locations": {strings.Join(locs, "|")}}, &resp); err != nil {
			lastErr = err
			continue
		}
		if resp.Status != "OK" {
			lastErr = fmt.Errorf("elevation status %s", resp.Status)
			continue
		}
		for j, r := range resp.Results {
			if j < len(batch) {
				out = append(out, ElevationSample{Location: batch[j], Elevation: r.Elevation})
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

type placesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string `json:"place_id"`
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Geometry struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *GoogleClient) NearbyPlaces(ctx context.Context, center models.Location, placeType string, radius int) ([]Place, error) {
	params := url.Values{
		"location": {fmt.Sprintf("%f,%f", center.Lat, center.Lng)},
		"radius":   {strconv.Itoa(radius)},
		"type":     {placeType},
	}
	var resp placesResponse
	if err := c.get(ctx, "/place/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places status %s", resp.Status)
	}

	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		loc := r.Geometry.Location.location()
		places = append(places, Place{
			PlaceID:  r.PlaceID,
			Name:     r.Name,
			Vicinity: r.Vicinity,
			Location: loc,
			Distance: geo.HaversineMeters(center, loc),
		})
	}
	return places, nil
}
