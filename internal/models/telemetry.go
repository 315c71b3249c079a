package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TirePressure struct {
	FrontLeft  float64 `bson:"front_left" json:"front_left"`
	FrontRight float64 `bson:"front_right" json:"front_right"`
	RearLeft   float64 `bson:"rear_left" json:"rear_left"`
	RearRight  float64 `bson:"rear_right" json:"rear_right"`
}

type TelemetryWeather struct {
	Condition   string  `bson:"condition" json:"condition"`
	Temperature float64 `bson:"temperature" json:"temperature"`
}

type TelemetryTraffic struct {
	CongestionLevel int     `bson:"congestion_level" json:"congestion_level"`
	SpeedLimit      float64 `bson:"speed_limit" json:"speed_limit"`
}

// Telemetry is an append-only sample reported by a vehicle.
type Telemetry struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID      string             `bson:"vehicle_id" json:"vehicle_id"`
	RouteID        *string            `bson:"route_id" json:"route_id"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	Location       *Location          `bson:"location,omitempty" json:"location,omitempty"`
	Speed          *float64           `bson:"speed,omitempty" json:"speed,omitempty"`
	FuelLevel      *float64           `bson:"fuel_level,omitempty" json:"fuel_level,omitempty"`
	EngineTemp     *float64           `bson:"engine_temp,omitempty" json:"engine_temp,omitempty"`
	OilPressure    *float64           `bson:"oil_pressure,omitempty" json:"oil_pressure,omitempty"`
	RPM            *float64           `bson:"rpm,omitempty" json:"rpm,omitempty"`
	BatteryVoltage *float64           `bson:"battery_voltage,omitempty" json:"battery_voltage,omitempty"`
	TirePressure   *TirePressure      `bson:"tire_pressure,omitempty" json:"tire_pressure,omitempty"`
	Acceleration   *float64           `bson:"acceleration,omitempty" json:"acceleration,omitempty"`
	Weather        *TelemetryWeather  `bson:"weather,omitempty" json:"weather,omitempty"`
	Traffic        *TelemetryTraffic  `bson:"traffic,omitempty" json:"traffic,omitempty"`
}
