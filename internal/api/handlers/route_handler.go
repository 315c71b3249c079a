package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"journey-risk-api-server/internal/api/middleware"
	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/pipeline"
	"journey-risk-api-server/internal/report"
	"journey-risk-api-server/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100

	// cancelWait bounds how long regenerate waits for a running job to stop.
	cancelWait = 10 * time.Second
)

// JobQueue is the part of pipeline.Queue the handlers use.
type JobQueue interface {
	Submit(ctx context.Context, routeID string) (pipeline.JobInfo, error)
	Cancel(ctx context.Context, routeID string) bool
	Status(routeID string) (pipeline.JobInfo, bool)
	Forget(routeID string)
}

type ReportExporter interface {
	Export(ctx context.Context, route *models.Route) (*report.Result, error)
}

type RouteHandler struct {
	Store   *repository.Store
	Queue   JobQueue
	Reports ReportExporter // nil when export is disabled
	Logger  *zap.Logger
}

type CreateRouteRequest struct {
	Name        string       `json:"name"`
	Origin      models.Place `json:"origin"`
	Destination models.Place `json:"destination"`
	VehicleID   *string      `json:"vehicle_id"`
}

func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.Origin.Address = strings.TrimSpace(req.Origin.Address)
	req.Destination.Address = strings.TrimSpace(req.Destination.Address)
	if req.Origin.Address == "" || req.Destination.Address == "" {
		badRequest(c, "Origin and destination addresses are required")
		return
	}
	ctx := c.Request.Context()

	if req.VehicleID != nil && *req.VehicleID != "" {
		v, err := h.Store.Vehicles.Get(ctx, *req.VehicleID)
		if err != nil || !middleware.CanAccess(c, v.UserID) {
			badRequest(c, "Invalid vehicle_id")
			return
		}
	} else {
		req.VehicleID = nil
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("Route from %s to %s", req.Origin.Address, req.Destination.Address)
	}
	now := time.Now().UTC()
	route := &models.Route{
		RouteID:     uuid.NewString(),
		UserID:      middleware.UserID(c),
		Name:        name,
		Origin:      req.Origin,
		Destination: req.Destination,
		VehicleID:   req.VehicleID,
		Status:      models.RouteStatusProcessing,
		Waypoints:   []models.Location{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := h.Store.Routes.Create(ctx, route); err != nil {
		serverError(c, h.Logger, "Failed to create route", err)
		return
	}
	if err := h.Store.RiskData.Create(ctx, models.NewRiskData(route.RouteID, now)); err != nil {
		serverError(c, h.Logger, "Failed to create risk data", err)
		return
	}

	if _, err := h.Queue.Submit(ctx, route.RouteID); err != nil {
		h.failUnscheduled(ctx, route, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Route processing could not be scheduled", "route": route})
		return
	}
	h.Logger.Info("route created", zap.String("route_id", route.RouteID), zap.String("user_id", route.UserID))

	c.JSON(http.StatusCreated, gin.H{
		"message": "Route created successfully, processing started",
		"route":   route,
	})
}

// failUnscheduled marks a route that never reached the queue as failed.
func (h *RouteHandler) failUnscheduled(ctx context.Context, route *models.Route, cause error) {
	h.Logger.Error("failed to schedule route", zap.String("route_id", route.RouteID), zap.Error(cause))
	status := models.RouteStatusFailed
	msg := "processing could not be scheduled"
	if err := h.Store.Routes.Update(ctx, route.RouteID, repository.RouteUpdate{Status: &status, Error: &msg}); err != nil {
		h.Logger.Error("failed to mark route failed", zap.String("route_id", route.RouteID), zap.Error(err))
		return
	}
	route.Status, route.Error = status, &msg
}

// ListRoutes pages the caller's routes, newest first. Admins see every route.
func (h *RouteHandler) ListRoutes(c *gin.Context) {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filter := repository.RouteFilter{}
	if !middleware.IsAdmin(c) {
		filter.UserID = middleware.UserID(c)
	}
	routes, total, err := h.Store.Routes.List(c.Request.Context(), filter, int64((page-1)*perPage), int64(perPage))
	if err != nil {
		serverError(c, h.Logger, "Failed to list routes", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"routes":      routes,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": int(math.Ceil(float64(total) / float64(perPage))),
	})
}

func (h *RouteHandler) GetRoute(c *gin.Context) {
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	rd, err := h.Store.RiskData.Get(c.Request.Context(), route.RouteID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to load risk data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": route, "risk_data": rd})
}

// DeleteRoute cancels any pipeline run before removing the route and its risk data.
func (h *RouteHandler) DeleteRoute(c *gin.Context) {
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	h.Queue.Forget(route.RouteID)
	if err := h.Store.Routes.Delete(ctx, route.RouteID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to delete route", err)
		return
	}
	if err := h.Store.RiskData.Delete(ctx, route.RouteID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to delete risk data", err)
		return
	}
	h.Logger.Info("route deleted", zap.String("route_id", route.RouteID))
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully"})
}

// RegenerateRoute stops any running job, clears previous results and resubmits.
func (h *RouteHandler) RegenerateRoute(c *gin.Context) {
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cancelCtx, cancel := context.WithTimeout(ctx, cancelWait)
	h.Queue.Cancel(cancelCtx, route.RouteID)
	cancel()
	if err := pipeline.ResetForRegenerate(ctx, h.Store, route); err != nil {
		serverError(c, h.Logger, "Failed to reset route", err)
		return
	}
	job, err := h.Queue.Submit(ctx, route.RouteID)
	if err != nil {
		h.failUnscheduled(ctx, route, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Route processing could not be scheduled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route regeneration started", "job": job})
}

// GeoJSON returns the route line and its risk points as a FeatureCollection.
func (h *RouteHandler) GeoJSON(c *gin.Context) {
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	rd, err := h.Store.RiskData.Get(c.Request.Context(), route.RouteID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to load risk data", err)
		return
	}
	fc, err := geo.RouteFeatureCollection(route, rd)
	if err != nil {
		serverError(c, h.Logger, "Failed to build GeoJSON", err)
		return
	}
	body, err := json.Marshal(fc)
	if err != nil {
		serverError(c, h.Logger, "Failed to encode GeoJSON", err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

// JobStatus reports the latest pipeline job this instance knows for the route.
func (h *RouteHandler) JobStatus(c *gin.Context) {
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	job, found := h.Queue.Status(route.RouteID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No job found for route", "status": route.Status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job, "status": route.Status})
}

// ExportReport uploads the route's risk report to object storage.
func (h *RouteHandler) ExportReport(c *gin.Context) {
	if h.Reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Report export is not configured"})
		return
	}
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	res, err := h.Reports.Export(c.Request.Context(), route)
	if errors.Is(err, report.ErrNotReady) {
		c.JSON(http.StatusConflict, gin.H{"error": "Route processing has not completed"})
		return
	}
	if err != nil {
		serverError(c, h.Logger, "Failed to export report", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report exported successfully", "report": res})
}
