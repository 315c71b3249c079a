// Package pipeline drives a route from creation to a scored terminal state and
// schedules those runs on a worker queue keyed by route id.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"journey-risk-api-server/internal/estimator"
	"journey-risk-api-server/internal/maps"
	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/risk"
	"journey-risk-api-server/internal/socket"

	"go.uber.org/zap"
)

type DirectionsResolver interface {
	Directions(ctx context.Context, origin, destination string) (*maps.Directions, error)
}

type FacilityFinder interface {
	Find(ctx context.Context, waypoints []models.Location) (models.NearbyFacilities, error)
}

type ETAOptimizer interface {
	Optimize(ctx context.Context, waypoints []models.Location, vehicleType string, hazards []models.RiskPoint) (string, bool, error)
}

type Orchestrator struct {
	Store        *repository.Store
	Directions   DirectionsResolver
	Estimators   []estimator.Entry
	Facilities   FacilityFinder
	ETA          ETAOptimizer
	Thresholds   risk.Thresholds
	Publisher    socket.Publisher
	Metrics      *metrics.Registry
	Logger       *zap.Logger
	StageTimeout time.Duration
}

// markFailedTimeout bounds the write that fails a route after its job ran out of time.
const markFailedTimeout = 10 * time.Second

// Process runs every stage for routeID. A cancelled run returns the context
// error and leaves the route untouched; a timed out run or any other failure
// marks it failed. Route writes are conditional on the run counter read here.
func (o *Orchestrator) Process(ctx context.Context, routeID string) error {
	route, err := o.Store.Routes.Get(ctx, routeID)
	if err != nil {
		return fmt.Errorf("load route: %w", err)
	}
	logger := o.Logger.With(zap.String("route_id", routeID), zap.Int("run", route.Run))
	if route.Status != models.RouteStatusProcessing {
		logger.Debug("route not awaiting processing", zap.String("status", route.Status))
		return nil
	}

	err = o.run(ctx, route, logger)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		logger.Info("route changed during processing, result dropped")
		return nil
	}
	writeCtx := ctx
	if cerr := ctx.Err(); cerr != nil {
		if !errors.Is(cerr, context.DeadlineExceeded) {
			return cerr
		}
		err = fmt.Errorf("processing timed out: %w", cerr)
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.Background(), markFailedTimeout)
		defer cancel()
	}

	logger.Error("route processing failed", zap.Error(err))
	if markErr := o.markFailed(writeCtx, route, err); markErr != nil && !errors.Is(markErr, repository.ErrStatusConflict) {
		logger.Error("mark route failed", zap.Error(markErr))
	}
	return err
}

func (o *Orchestrator) markFailed(ctx context.Context, route *models.Route, cause error) error {
	status, err := NextStatus(route.Status, EventFail)
	if err != nil {
		return err
	}
	msg := cause.Error()
	if err := o.Store.Routes.Update(ctx, route.RouteID, repository.RouteUpdate{
		Status:       &status,
		Error:        &msg,
		ExpectStatus: models.RouteStatusProcessing,
		ExpectRun:    &route.Run,
	}); err != nil {
		return err
	}
	o.publish(route.RouteID, map[string]interface{}{"status": status, "error": msg})
	return nil
}

// stage bounds fn by the stage timeout and records its duration.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	sctx, cancel := ctx, context.CancelFunc(func() {})
	if o.StageTimeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, o.StageTimeout)
	}
	defer cancel()
	start := time.Now()
	err := fn(sctx)
	o.Metrics.ObserveStage(name, time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) run(ctx context.Context, route *models.Route, logger *zap.Logger) error {
	// 1. directions
	var dir *maps.Directions
	err := o.stage(ctx, "directions", func(ctx context.Context) error {
		var err error
		dir, err = o.Directions.Directions(ctx, maps.Query(route.Origin), maps.Query(route.Destination))
		return err
	})
	if err != nil {
		return fmt.Errorf("resolve directions: %w", err)
	}
	if err := o.Store.Routes.Update(ctx, route.RouteID, repository.RouteUpdate{
		Polyline:     &dir.Polyline,
		Distance:     &dir.Distance,
		Duration:     &dir.Duration,
		Waypoints:    dir.Waypoints,
		ExpectStatus: models.RouteStatusProcessing,
		ExpectRun:    &route.Run,
	}); err != nil {
		return fmt.Errorf("save directions: %w", err)
	}
	waypoints := dir.Waypoints

	// 2. vehicle
	vehicleType := models.DefaultVehicleType
	if route.VehicleID != nil && *route.VehicleID != "" {
		if v, err := o.Store.Vehicles.Get(ctx, *route.VehicleID); err == nil && v.Type != "" {
			vehicleType = v.Type
		} else if err != nil {
			logger.Warn("vehicle lookup failed, assuming car", zap.String("vehicle_id", *route.VehicleID), zap.Error(err))
		}
	}

	// 3. hazards
	rd := models.NewRiskData(route.RouteID, time.Now().UTC())
	for _, e := range o.Estimators {
		var pts []models.RiskPoint
		err := o.stage(ctx, e.Category.Short(), func(ctx context.Context) error {
			var err error
			pts, err = e.Estimator.Estimate(ctx, waypoints)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("estimator failed", zap.String("category", string(e.Category)), zap.Error(err))
			pts = nil
		}
		rd.SetPoints(e.Category, pts)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.Store.RiskData.SetRiskPoints(ctx, route.RouteID, e.Category, rd.Points(e.Category)); err != nil {
			return fmt.Errorf("save %s: %w", e.Category, err)
		}
	}

	// 4. facilities
	if o.Facilities != nil {
		var nf models.NearbyFacilities
		err := o.stage(ctx, "facilities", func(ctx context.Context) error {
			var err error
			nf, err = o.Facilities.Find(ctx, waypoints)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("facility lookup failed", zap.Error(err))
			nf = models.NewNearbyFacilities()
		}
		rd.NearbyFacilities = nf
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.Store.RiskData.SetFacilities(ctx, route.RouteID, nf); err != nil {
			return fmt.Errorf("save facilities: %w", err)
		}
	}

	// 5. score
	score, level := o.Thresholds.Aggregate(rd)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.Store.RiskData.SetRiskScore(ctx, route.RouteID, score, level); err != nil {
		return fmt.Errorf("save risk score: %w", err)
	}

	// 6. eta and completion
	upd := repository.RouteUpdate{
		RiskScore:    &score,
		RiskLevel:    &level,
		ExpectStatus: models.RouteStatusProcessing,
		ExpectRun:    &route.Run,
	}
	if o.ETA != nil {
		err := o.stage(ctx, "eta", func(ctx context.Context) error {
			d, ok, err := o.ETA.Optimize(ctx, waypoints, vehicleType, rd.WeatherHazards)
			if ok {
				upd.OptimizedDuration = &d
			}
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("eta optimization failed", zap.Error(err))
		}
	}

	status, err := NextStatus(route.Status, EventComplete)
	if err != nil {
		return err
	}
	upd.Status = &status
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.Store.Routes.Update(ctx, route.RouteID, upd); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return fmt.Errorf("complete route: %w", err)
		}
		return fmt.Errorf("save route result: %w", err)
	}

	logger.Info("route processed", zap.Float64("risk_score", score), zap.String("risk_level", level))
	o.publish(route.RouteID, map[string]interface{}{"status": status, "risk_score": score, "risk_level": level})
	return nil
}

func (o *Orchestrator) publish(routeID string, data interface{}) {
	if o.Publisher != nil {
		o.Publisher.Publish(socket.RouteChannel(routeID), data)
	}
}

// ResetForRegenerate moves a route back to processing and clears every
// previous result, so a new run never shows a stale score.
func ResetForRegenerate(ctx context.Context, store *repository.Store, route *models.Route) error {
	status, err := NextStatus(route.Status, EventRegenerate)
	if err != nil {
		return err
	}
	if err := store.Routes.Update(ctx, route.RouteID, repository.RouteUpdate{
		ResetResults: true,
		Status:       &status,
	}); err != nil {
		return fmt.Errorf("reset route: %w", err)
	}
	if err := store.RiskData.Reset(ctx, route.RouteID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("reset risk data: %w", err)
		}
		if err := store.RiskData.Create(ctx, models.NewRiskData(route.RouteID, time.Now().UTC())); err != nil {
			return fmt.Errorf("recreate risk data: %w", err)
		}
	}
	return nil
}
