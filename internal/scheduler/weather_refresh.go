package scheduler

import (
	"context"
	"fmt"
	"time"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/socket"
	"journey-risk-api-server/internal/weather"

	"go.uber.org/zap"
)

type WeatherObserver interface {
	Observe(ctx context.Context, points []models.Location) ([]weather.Observation, error)
}

// WeatherRefresh re-reads current conditions for recently completed routes,
// rewrites their weather hazards and pushes them on the route's weather channel.
type WeatherRefresh struct {
	Store     *repository.Store
	Weather   WeatherObserver
	Publisher socket.Publisher
	Logger    *zap.Logger
	Window    time.Duration
	Now       func() time.Time
}

func NewWeatherRefresh(store *repository.Store, w WeatherObserver, pub socket.Publisher, logger *zap.Logger) *WeatherRefresh {
	return &WeatherRefresh{
		Store:     store,
		Weather:   w,
		Publisher: pub,
		Logger:    logger,
		Window:    weather.ActiveWindow,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (j *WeatherRefresh) Name() string { return "weather_refresh" }

func (j *WeatherRefresh) Run(ctx context.Context) error {
	routes, _, err := j.Store.Routes.List(ctx, repository.RouteFilter{
		Status:       models.RouteStatusCompleted,
		CreatedSince: j.Now().Add(-j.Window),
	}, 0, 0)
	if err != nil {
		return fmt.Errorf("list active routes: %w", err)
	}

	refreshed := 0
	for i := range routes {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := &routes[i]
		if len(r.Waypoints) == 0 {
			continue
		}
		obs, err := j.Weather.Observe(ctx, r.Waypoints)
		if err != nil {
			j.Logger.Warn("weather refresh skipped", zap.String("route_id", r.RouteID), zap.Error(err))
			continue
		}
		hazards := weather.RefreshHazards(obs)
		if err := j.Store.RiskData.SetRiskPoints(ctx, r.RouteID, models.CategoryWeather, hazards); err != nil {
			j.Logger.Warn("save refreshed hazards", zap.String("route_id", r.RouteID), zap.Error(err))
			continue
		}
		if j.Publisher != nil {
			j.Publisher.Publish(socket.WeatherChannel(r.RouteID), map[string]interface{}{"hazards": hazards})
		}
		refreshed++
	}
	j.Logger.Info("weather refreshed", zap.Int("routes", refreshed), zap.Int("active", len(routes)))
	return nil
}
