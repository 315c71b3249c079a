package weather

import (
	"context"
	"fmt"
	"time"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
)

type Alert struct {
	RouteID     string              `json:"route_id"`
	RouteName   string              `json:"route_name"`
	AlertType   string              `json:"alert_type"`
	RiskLevel   string              `json:"risk_level"`
	Location    models.Location     `json:"location"`
	Description string              `json:"description"`
	Details     []models.HazardType `json:"details"`
}

// ActiveWindow is how far back a completed route still counts as active.
const ActiveWindow = 24 * time.Hour

// Alerts lists high weather hazards on the user's completed routes created within ActiveWindow.
func Alerts(ctx context.Context, store *repository.Store, userID string, now time.Time) ([]Alert, error) {
	routes, _, err := store.Routes.List(ctx, repository.RouteFilter{
		UserID:       userID,
		Status:       models.RouteStatusCompleted,
		CreatedSince: now.Add(-ActiveWindow),
	}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list active routes: %w", err)
	}

	ids := make([]string, 0, len(routes))
	for _, r := range routes {
		ids = append(ids, r.RouteID)
	}
	riskData, err := store.RiskData.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load risk data: %w", err)
	}

	alerts := []Alert{}
	for i := range routes {
		rd, ok := riskData[routes[i].RouteID]
		if !ok {
			continue
		}
		for _, h := range rd.WeatherHazards {
			if h.RiskLevel != models.RiskLevelHigh {
				continue
			}
			details := h.HazardTypes
			if details == nil {
				details = []models.HazardType{}
			}
			alerts = append(alerts, Alert{
				RouteID:     routes[i].RouteID,
				RouteName:   routes[i].DisplayName(),
				AlertType:   "weather",
				RiskLevel:   models.RiskLevelHigh,
				Location:    h.Location,
				Description: "Severe weather: " + h.WeatherCondition,
				Details:     details,
			})
		}
	}
	return alerts, nil
}
