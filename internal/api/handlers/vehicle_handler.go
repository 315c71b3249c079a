package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"journey-risk-api-server/internal/api/middleware"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultTelemetryLimit = 100
	maxTelemetryLimit     = 1000
)

type VehicleHandler struct {
	Store     *repository.Store
	Publisher socket.Publisher
	Logger    *zap.Logger
}

type CreateVehicleRequest struct {
	Name           string   `json:"name" binding:"required"`
	Type           string   `json:"type" binding:"required"`
	Make           string   `json:"make" binding:"required"`
	Model          string   `json:"model" binding:"required"`
	Year           *int     `json:"year"`
	Registration   string   `json:"registration"`
	FuelType       string   `json:"fuel_type"`
	TankCapacity   *float64 `json:"tank_capacity"`
	AverageMileage *float64 `json:"average_mileage"`
}

type UpdateVehicleRequest struct {
	Name            *string  `json:"name"`
	Type            *string  `json:"type"`
	Make            *string  `json:"make"`
	Model           *string  `json:"model"`
	Year            *int     `json:"year"`
	Registration    *string  `json:"registration"`
	FuelType        *string  `json:"fuel_type"`
	TankCapacity    *float64 `json:"tank_capacity"`
	AverageMileage  *float64 `json:"average_mileage"`
	NextServiceDate *string  `json:"next_service_date"`
}

type MaintenanceRequest struct {
	Date        string   `json:"date" binding:"required"`
	Type        string   `json:"type" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Mileage     *float64 `json:"mileage"`
	Cost        *float64 `json:"cost"`
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	userID := middleware.UserID(c)
	if middleware.IsAdmin(c) {
		userID = ""
	}
	vehicles, err := h.Store.Vehicles.ListByUser(c.Request.Context(), userID)
	if err != nil {
		serverError(c, h.Logger, "Failed to list vehicles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	now := time.Now().UTC()
	v := &models.Vehicle{
		UserID:         middleware.UserID(c),
		Name:           req.Name,
		Type:           strings.ToLower(req.Type),
		Make:           req.Make,
		Model:          req.Model,
		Year:           req.Year,
		Registration:   req.Registration,
		FuelType:       req.FuelType,
		TankCapacity:   req.TankCapacity,
		AverageMileage: req.AverageMileage,
		Maintenance:    models.Maintenance{History: []models.MaintenanceRecord{}},
		CreatedAt:      now,
		LastUpdated:    now,
	}
	if v.FuelType == "" {
		v.FuelType = models.DefaultFuelType
	}
	if err := h.Store.Vehicles.Create(c.Request.Context(), v); err != nil {
		serverError(c, h.Logger, "Failed to create vehicle", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Vehicle created successfully", "vehicle": v})
}

// GetVehicle returns the vehicle with its latest and recent telemetry.
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	v, ok := loadVehicle(c, h.Store, h.Logger)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := v.ID.Hex()

	latest, err := h.Store.Telemetry.LatestByVehicle(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to load telemetry", err)
		return
	}
	recent, err := h.Store.Telemetry.ListByVehicle(ctx, id, defaultTelemetryLimit, 0)
	if err != nil {
		serverError(c, h.Logger, "Failed to load telemetry", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": v, "latest_telemetry": latest, "telemetry": recent})
}

func (h *VehicleHandler) UpdateVehicle(c *gin.Context) {
	var req UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	v, ok := loadVehicle(c, h.Store, h.Logger)
	if !ok {
		return
	}

	upd := repository.VehicleUpdate{
		Name:           req.Name,
		Type:           req.Type,
		Make:           req.Make,
		Model:          req.Model,
		Year:           req.Year,
		Registration:   req.Registration,
		FuelType:       req.FuelType,
		TankCapacity:   req.TankCapacity,
		AverageMileage: req.AverageMileage,
	}
	if req.NextServiceDate != nil {
		d, err := parseDate(*req.NextServiceDate)
		if err != nil {
			badRequest(c, "Invalid next_service_date")
			return
		}
		upd.NextServiceDate = &d
	}

	ctx := c.Request.Context()
	if err := h.Store.Vehicles.Update(ctx, v.ID.Hex(), upd); err != nil {
		serverError(c, h.Logger, "Failed to update vehicle", err)
		return
	}
	updated, err := h.Store.Vehicles.Get(ctx, v.ID.Hex())
	if err != nil {
		serverError(c, h.Logger, "Failed to load vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vehicle updated successfully", "vehicle": updated})
}

func (h *VehicleHandler) DeleteVehicle(c *gin.Context) {
	v, ok := loadVehicle(c, h.Store, h.Logger)
	if !ok {
		return
	}
	if err := h.Store.Vehicles.Delete(c.Request.Context(), v.ID.Hex()); err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to delete vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vehicle deleted successfully"})
}

func (h *VehicleHandler) AddMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, "Invalid date")
		return
	}
	v, ok := loadVehicle(c, h.Store, h.Logger)
	if !ok {
		return
	}

	rec := models.MaintenanceRecord{
		Date:        date,
		Type:        req.Type,
		Description: req.Description,
		Mileage:     req.Mileage,
		Cost:        req.Cost,
	}
	ctx := c.Request.Context()
	if err := h.Store.Vehicles.AddMaintenanceRecord(ctx, v.ID.Hex(), rec); err != nil {
		serverError(c, h.Logger, "Failed to add maintenance record", err)
		return
	}
	updated, err := h.Store.Vehicles.Get(ctx, v.ID.Hex())
	if err != nil {
		serverError(c, h.Logger, "Failed to load vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance record added successfully", "vehicle": updated})
}

// AddTelemetry stores one sample and pushes it to vehicle_update_{id}.
func (h *VehicleHandler) AddTelemetry(c *gin.Context) {
	var t models.Telemetry
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, err.Error())
		return
	}
	v, ok := loadVehicle(c, h.Store, h.Logger)
	if !ok {
		return
	}

	t.ID = primitive.NilObjectID
	t.VehicleID = v.ID.Hex()
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if err := h.Store.Telemetry.Add(c.Request.Context(), &t); err != nil {
		serverError(c, h.Logger, "Failed to store telemetry", err)
		return
	}
	if h.Publisher != nil {
		h.Publisher.Publish(socket.VehicleChannel(t.VehicleID), gin.H{"telemetry": t})
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Telemetry data added successfully", "telemetry": t})
}

func (h *VehicleHandler) ListTelemetry(c *gin.Context) {
	v, ok := loadVehicle(c, h.Store, h.Logger)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", defaultTelemetryLimit)
	if limit > maxTelemetryLimit {
		limit = maxTelemetryLimit
	}
	skip := queryInt(c, "skip", 0)

	ctx := c.Request.Context()
	telemetry, err := h.Store.Telemetry.ListByVehicle(ctx, v.ID.Hex(), int64(limit), int64(skip))
	if err != nil {
		serverError(c, h.Logger, "Failed to load telemetry", err)
		return
	}
	count, err := h.Store.Telemetry.CountByVehicle(ctx, v.ID.Hex())
	if err != nil {
		serverError(c, h.Logger, "Failed to count telemetry", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"telemetry": telemetry, "count": count, "limit": limit, "skip": skip})
}
