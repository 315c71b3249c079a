// Package repository persists users, routes, risk data, vehicles and telemetry.
// MongoStore is used in production; MemoryStore backs tests and the "memory" storage driver.
package repository

import (
	"context"
	"errors"
	"time"

	"journey-risk-api-server/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("duplicate key")
	ErrStatusConflict = errors.New("route changed concurrently")
)

type ProfileUpdate struct {
	Email       *string
	Company     *string
	Preferences *models.Preferences
}

type UserStore interface {
	// Create returns ErrDuplicate when the username or email is taken.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string) error
}

// RouteFilter narrows List. Zero fields do not filter.
type RouteFilter struct {
	UserID       string
	Status       string
	CreatedSince time.Time
	UpdatedSince time.Time
	RouteIDs     []string
}

// RouteUpdate is a partial update. Nil pointers leave fields untouched.
type RouteUpdate struct {
	Status            *string
	Error             *string
	Polyline          *string
	Distance          *string
	Duration          *string
	OptimizedDuration *string
	Waypoints         []models.Location
	RiskScore         *float64
	RiskLevel         *string

	// ResetResults clears every pipeline output (geometry, durations, score, error)
	// before the other fields are applied, and bumps the run counter.
	ResetResults bool
	// ExpectStatus makes the update conditional on the current status.
	ExpectStatus string
	// ExpectRun makes the update conditional on the run counter.
	ExpectRun *int
}

type RouteStore interface {
	Create(ctx context.Context, route *models.Route) error
	Get(ctx context.Context, routeID string) (*models.Route, error)
	// List returns routes newest first plus the unpaginated total. limit <= 0 means no limit.
	List(ctx context.Context, f RouteFilter, skip, limit int64) ([]models.Route, int64, error)
	Update(ctx context.Context, routeID string, u RouteUpdate) error
	Delete(ctx context.Context, routeID string) error
}

type RiskDataStore interface {
	Create(ctx context.Context, rd *models.RiskData) error
	Get(ctx context.Context, routeID string) (*models.RiskData, error)
	GetMany(ctx context.Context, routeIDs []string) (map[string]*models.RiskData, error)
	SetRiskPoints(ctx context.Context, routeID string, cat models.Category, points []models.RiskPoint) error
	SetFacilities(ctx context.Context, routeID string, facilities models.NearbyFacilities) error
	SetRiskScore(ctx context.Context, routeID string, score float64, level string) error
	// Reset empties every list and clears the score.
	Reset(ctx context.Context, routeID string) error
	Delete(ctx context.Context, routeID string) error
}

type VehicleUpdate struct {
	Name            *string
	Type            *string
	Make            *string
	Model           *string
	Year            *int
	Registration    *string
	FuelType        *string
	TankCapacity    *float64
	AverageMileage  *float64
	NextServiceDate *time.Time
}

type VehicleStore interface {
	Create(ctx context.Context, v *models.Vehicle) error
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	// ListByUser returns every vehicle when userID is empty.
	ListByUser(ctx context.Context, userID string) ([]models.Vehicle, error)
	Update(ctx context.Context, id string, u VehicleUpdate) error
	Delete(ctx context.Context, id string) error
	// AddMaintenanceRecord appends rec and moves last_service_date/mileage to it.
	AddMaintenanceRecord(ctx context.Context, id string, rec models.MaintenanceRecord) error
}

type TelemetryStore interface {
	Add(ctx context.Context, t *models.Telemetry) error
	// ListByVehicle is newest first.
	ListByVehicle(ctx context.Context, vehicleID string, limit, skip int64) ([]models.Telemetry, error)
	CountByVehicle(ctx context.Context, vehicleID string) (int64, error)
	// ListByRoute is oldest first.
	ListByRoute(ctx context.Context, routeID string, limit int64) ([]models.Telemetry, error)
	LatestByVehicle(ctx context.Context, vehicleID string) (*models.Telemetry, error)
}

// Store groups the collections the application uses.
type Store struct {
	Users     UserStore
	Routes    RouteStore
	RiskData  RiskDataStore
	Vehicles  VehicleStore
	Telemetry TelemetryStore
}
