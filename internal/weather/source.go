// Package weather fetches current conditions along a route and derives weather hazards.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
)

// Observation is the current weather at one point. Visibility is in km.
type Observation struct {
	Location      models.Location `json:"location"`
	Timestamp     time.Time       `json:"timestamp"`
	Temperature   float64         `json:"temperature"`
	FeelsLike     float64         `json:"feels_like"`
	Humidity      float64         `json:"humidity"`
	Pressure      float64         `json:"pressure"`
	WindSpeed     float64         `json:"wind_speed"`
	WindDirection float64         `json:"wind_direction"`
	Cloudiness    float64         `json:"cloudiness"`
	Visibility    float64         `json:"visibility"`
	Precipitation float64         `json:"precipitation"`
	Condition     string          `json:"weather_condition"`
	Description   string          `json:"weather_description"`
	Icon          string          `json:"weather_icon"`
}

// Source returns current conditions at a coordinate.
type Source interface {
	Current(ctx context.Context, loc models.Location) (*Observation, error)
}

const defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient reads the current-weather endpoint in metric units.
type OpenWeatherClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenWeatherClient(apiKey string, timeout time.Duration) *OpenWeatherClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenWeatherClient{apiKey: apiKey, baseURL: defaultOpenWeatherURL, httpClient: &http.Client{Timeout: timeout}}
}

// WithBaseURL points the client at another host. Used by tests.
func (c *OpenWeatherClient) WithBaseURL(u string) *OpenWeatherClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

type owmResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Visibility *float64 `json:"visibility"`
	Rain       *struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Snow *struct {
		OneHour float64 `json:"1h"`
	} `json:"snow"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

func (c *OpenWeatherClient) Current(ctx context.Context, loc models.Location) (*Observation, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(loc.Lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(loc.Lng, 'f', -1, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create weather request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request weather: status %d", resp.StatusCode)
	}

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	obs := &Observation{
		Location:      loc,
		Timestamp:     time.Now().UTC(),
		Temperature:   data.Main.Temp,
		FeelsLike:     data.Main.FeelsLike,
		Humidity:      data.Main.Humidity,
		Pressure:      data.Main.Pressure,
		WindSpeed:     data.Wind.Speed,
		WindDirection: data.Wind.Deg,
		Cloudiness:    data.Clouds.All,
		Visibility:    10,
	}
	if data.Visibility != nil {
		obs.Visibility = *data.Visibility / 1000
	}
	if data.Rain != nil {
		obs.Precipitation = data.Rain.OneHour
	} else if data.Snow != nil {
		obs.Precipitation = data.Snow.OneHour
	}
	if len(data.Weather) > 0 {
		obs.Condition = data.Weather[0].Main
		obs.Description = data.Weather[0].Description
		obs.Icon = data.Weather[0].Icon
	}
	return obs, nil
}

// SyntheticSource produces stable conditions per coordinate and hour when no API key is set.
type SyntheticSource struct {
	Now func() time.Time
}

func (s SyntheticSource) Current(ctx context.Context, loc models.Location) (*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	rng := rand.New(rand.NewSource(geo.CoordSeed(loc, 100) + int64(now.Hour())))

	obs := &Observation{
		Location:      loc,
		Timestamp:     now,
		Temperature:   15 + rng.NormFloat64()*10,
		Humidity:      30 + rng.Float64()*70,
		Pressure:      1013 + rng.NormFloat64()*8,
		WindSpeed:     rng.ExpFloat64() * 5,
		WindDirection: rng.Float64() * 360,
		Cloudiness:    rng.Float64() * 100,
		Visibility:    math.Max(0, math.Min(20, 8+rng.NormFloat64()*5)),
		Precipitation: rng.ExpFloat64(),
	}
	obs.FeelsLike = obs.Temperature - obs.WindSpeed*0.3

	switch {
	case obs.Visibility < 1:
		obs.Condition, obs.Description, obs.Icon = "Fog", "fog", "50d"
	case obs.Precipitation > 2 && obs.Temperature < 0:
		obs.Condition, obs.Description, obs.Icon = "Snow", "snow", "13d"
	case obs.Precipitation > 5 && obs.WindSpeed > 10:
		obs.Condition, obs.Description, obs.Icon = "Thunderstorm", "thunderstorm with heavy rain", "11d"
	case obs.Precipitation > 2:
		obs.Condition, obs.Description, obs.Icon = "Rain", "moderate rain", "10d"
	case obs.Cloudiness > 70:
		obs.Condition, obs.Description, obs.Icon = "Clouds", "overcast clouds", "04d"
	default:
		obs.Condition, obs.Description, obs.Icon = "Clear", "clear sky", "01d"
	}
	return obs, nil
}
