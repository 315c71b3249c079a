// server/internal/models/route.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Route statuses
const (
	RouteStatusProcessing = "processing"
	RouteStatusCompleted  = "completed"
	RouteStatusFailed     = "failed"
)

type Route struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RouteID           string             `bson:"route_id" json:"route_id"`
	UserID            string             `bson:"user_id" json:"user_id"`
	Name              string             `bson:"name" json:"name"`
	Origin            Place              `bson:"origin" json:"origin"`
	Destination       Place              `bson:"destination" json:"destination"`
	VehicleID         *string            `bson:"vehicle_id" json:"vehicle_id"`
	Status            string             `bson:"status" json:"status"`
	Error             *string            `bson:"error,omitempty" json:"error,omitempty"`
	Polyline          *string            `bson:"polyline" json:"polyline"`
	Distance          *string            `bson:"distance" json:"distance"`
	Duration          *string            `bson:"duration" json:"duration"`
	OptimizedDuration *string            `bson:"optimized_duration" json:"optimized_duration"`
	Waypoints         []Location         `bson:"waypoints" json:"waypoints"`
	RiskScore         *float64           `bson:"risk_score" json:"risk_score"`
	RiskLevel         *string            `bson:"risk_level" json:"risk_level"`
	// Run counts regenerations. Pipeline writes are conditional on it.
	Run               int                `bson:"run" json:"run"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	LastUpdated       time.Time          `bson:"last_updated" json:"last_updated"`
}

// DisplayName falls back to a short id when the route has no name.
func (r *Route) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	id := r.RouteID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Route " + id
}

// Terminal reports whether the route reached completed or failed.
func (r *Route) Terminal() bool {
	return r.Status == RouteStatusCompleted || r.Status == RouteStatusFailed
}
