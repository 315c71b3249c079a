// server/internal/models/vehicle.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MaintenanceRecord struct {
	Date        time.Time `bson:"date" json:"date"`
	Type        string    `bson:"type" json:"type"`               // e.g. "oil_change", "inspection"
	Description string    `bson:"description" json:"description"` // free text
	Mileage     *float64  `bson:"mileage,omitempty" json:"mileage,omitempty"`
	Cost        *float64  `bson:"cost,omitempty" json:"cost,omitempty"`
}

type Maintenance struct {
	LastServiceDate    *time.Time          `bson:"last_service_date" json:"last_service_date"`
	NextServiceDate    *time.Time          `bson:"next_service_date" json:"next_service_date"`
	LastServiceMileage *float64            `bson:"last_service_mileage" json:"last_service_mileage"`
	History            []MaintenanceRecord `bson:"history" json:"history"`
}

type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"user_id" json:"user_id"`
	Name           string             `bson:"name" json:"name"`
	Type           string             `bson:"type" json:"type"` // car, truck, bus, motorcycle, bicycle
	Make           string             `bson:"make" json:"make"`
	Model          string             `bson:"model" json:"model"`
	Year           *int               `bson:"year" json:"year"`
	Registration   string             `bson:"registration" json:"registration"`
	FuelType       string             `bson:"fuel_type" json:"fuel_type"`
	TankCapacity   *float64           `bson:"tank_capacity" json:"tank_capacity"`
	AverageMileage *float64           `bson:"average_mileage" json:"average_mileage"`
	Maintenance    Maintenance        `bson:"maintenance" json:"maintenance"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	LastUpdated    time.Time          `bson:"last_updated" json:"last_updated"`
}

// Defaults applied when a vehicle is created without them.
const (
	DefaultVehicleName = "My Vehicle"
	DefaultVehicleType = "car"
	DefaultFuelType    = "petrol"
)
