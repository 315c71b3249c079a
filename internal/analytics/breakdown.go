package analytics

import (
	"sort"
	"time"

	"journey-risk-api-server/internal/eta"
	"journey-risk-api-server/internal/models"
)

// BreakdownFeatures are the vehicle health inputs behind a breakdown estimate.
type BreakdownFeatures struct {
	VehicleAge             int
	DaysSinceService       int
	EngineTemp             float64
	OilPressure            float64
	BatteryVoltage         float64
	RPM                    float64
	FuelLevel              float64
	MaintenanceIssues      int
	AvgMaintenanceInterval float64
	VehicleType            int
}

// NewBreakdownFeatures fills features from the vehicle, its latest telemetry
// (may be nil) and its maintenance history, falling back to typical values.
func NewBreakdownFeatures(v *models.Vehicle, t *models.Telemetry, now time.Time) BreakdownFeatures {
	f := BreakdownFeatures{
		VehicleAge:             5,
		DaysSinceService:       365,
		EngineTemp:             90,
		OilPressure:            30,
		BatteryVoltage:         12,
		RPM:                    1500,
		FuelLevel:              50,
		AvgMaintenanceInterval: 180,
		VehicleType:            eta.VehicleCode(v.Type),
	}
	if v.Year != nil {
		f.VehicleAge = now.Year() - *v.Year
	}
	if d := v.Maintenance.LastServiceDate; d != nil {
		f.DaysSinceService = int(now.Sub(*d).Hours() / 24)
	}
	if t != nil {
		f.EngineTemp = deref(t.EngineTemp, f.EngineTemp)
		f.OilPressure = deref(t.OilPressure, f.OilPressure)
		f.BatteryVoltage = deref(t.BatteryVoltage, f.BatteryVoltage)
		f.RPM = deref(t.RPM, f.RPM)
		f.FuelLevel = deref(t.FuelLevel, f.FuelLevel)
	}

	dates := make([]time.Time, 0, len(v.Maintenance.History))
	for _, rec := range v.Maintenance.History {
		if rec.Date.IsZero() {
			continue
		}
		dates = append(dates, rec.Date)
		if now.Sub(rec.Date) <= 365*24*time.Hour {
			f.MaintenanceIssues++
		}
	}
	if len(dates) >= 2 {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		var sum float64
		for i := 1; i < len(dates); i++ {
			sum += dates[i].Sub(dates[i-1]).Hours() / 24
		}
		f.AvgMaintenanceInterval = sum / float64(len(dates)-1)
	}
	return f
}

// BreakdownProbability is the chance of a breakdown within the next 100 km, in [0, 1].
func BreakdownProbability(f BreakdownFeatures) float64 {
	p := 0.05 +
		0.02*float64(f.VehicleAge)/10 +
		0.02*float64(f.DaysSinceService)/100
	if f.EngineTemp > 110 || f.EngineTemp < 70 {
		p += 0.03
	}
	if f.OilPressure < 15 || f.OilPressure > 50 {
		p += 0.05
	}
	if f.BatteryVoltage < 11 || f.BatteryVoltage > 14 {
		p += 0.03
	}
	if f.MaintenanceIssues > 2 {
		p += 0.02
	}
	if f.AvgMaintenanceInterval > 270 && f.DaysSinceService > 180 {
		p += 0.02
	}
	if f.VehicleType == eta.VehicleCode("truck") {
		p += 0.01
	}
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
