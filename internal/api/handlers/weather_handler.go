package handlers

import (
	"context"
	"net/http"
	"time"

	"journey-risk-api-server/internal/api/middleware"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/weather"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WeatherService is the part of weather.Service the handlers use.
type WeatherService interface {
	Current(ctx context.Context, loc models.Location) (*weather.Observation, error)
	Observe(ctx context.Context, points []models.Location) ([]weather.Observation, error)
}

type WeatherHandler struct {
	Store   *repository.Store
	Weather WeatherService
	Logger  *zap.Logger
}

type HazardsRequest struct {
	RoutePoints []models.Location `json:"route_points" binding:"required,min=1"`
}

// Forecast is public and returns current conditions at lat/lng.
func (h *WeatherHandler) Forecast(c *gin.Context) {
	loc, ok := queryLocation(c)
	if !ok {
		badRequest(c, "Valid lat and lng are required")
		return
	}
	obs, err := h.Weather.Current(c.Request.Context(), loc)
	if err != nil {
		serverError(c, h.Logger, "Failed to fetch weather", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc, "weather": obs})
}

func (h *WeatherHandler) Hazards(c *gin.Context) {
	var req HazardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "route_points is required")
		return
	}
	obs, err := h.Weather.Observe(c.Request.Context(), req.RoutePoints)
	if err != nil {
		serverError(c, h.Logger, "Failed to fetch weather", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hazards": weather.Hazards(obs)})
}

func (h *WeatherHandler) Alerts(c *gin.Context) {
	alerts, err := weather.Alerts(c.Request.Context(), h.Store, middleware.UserID(c), time.Now().UTC())
	if err != nil {
		serverError(c, h.Logger, "Failed to load weather alerts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
