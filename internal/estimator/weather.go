package estimator

import (
	"context"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/weather"
)

// Weather reports observations whose hazard probability reaches 0.3.
type Weather struct {
	Observer Observer
}

func (w *Weather) Estimate(ctx context.Context, waypoints []models.Location) ([]models.RiskPoint, error) {
	if len(waypoints) == 0 {
		return []models.RiskPoint{}, nil
	}
	obs, err := w.Observer.Observe(ctx, waypoints)
	if err != nil {
		return nil, err
	}
	return weather.Hazards(obs), nil
}
