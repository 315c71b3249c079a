package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"journey-risk-api-server/internal/api/middleware"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// serverError logs err and replies 500 with a generic message.
func serverError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Error(msg,
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// loadRoute fetches the route named by the :id (or :route_id) param and
// enforces ownership. It writes the error response itself.
func loadRoute(c *gin.Context, store *repository.Store, logger *zap.Logger) (*models.Route, bool) {
	id := c.Param("id")
	if id == "" {
		id = c.Param("route_id")
	}
	route, err := store.Routes.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
		return nil, false
	}
	if err != nil {
		serverError(c, logger, "Failed to load route", err)
		return nil, false
	}
	if !middleware.CanAccess(c, route.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	return route, true
}

func loadVehicle(c *gin.Context, store *repository.Store, logger *zap.Logger) (*models.Vehicle, bool) {
	vehicle, err := store.Vehicles.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return nil, false
	}
	if err != nil {
		serverError(c, logger, "Failed to load vehicle", err)
		return nil, false
	}
	if !middleware.CanAccess(c, vehicle.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	return vehicle, true
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// queryFloat reads a finite float query parameter.
func queryFloat(c *gin.Context, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// queryLocation reads lat and lng, both required and within coordinate range.
func queryLocation(c *gin.Context) (models.Location, bool) {
	lat, okLat := queryFloat(c, "lat")
	lng, okLng := queryFloat(c, "lng")
	if !okLat || !okLng || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return models.Location{}, false
	}
	return models.Location{Lat: lat, Lng: lng}, true
}
