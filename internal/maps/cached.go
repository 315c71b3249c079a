package maps

import (
	"context"
	"time"

	"journey-risk-api-server/internal/cache"
	"journey-risk-api-server/internal/geo"
	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/models"
)

// Cached memoizes directions and elevation lookups. Places pass through.
type Cached struct {
	Provider
	cache        cache.Cache
	metrics      *metrics.Registry
	routeTTL     time.Duration
	elevationTTL time.Duration
}

func NewCached(p Provider, c cache.Cache, m *metrics.Registry, routeTTL, elevationTTL time.Duration) *Cached {
	return &Cached{Provider: p, cache: c, metrics: m, routeTTL: routeTTL, elevationTTL: elevationTTL}
}

func (c *Cached) Directions(ctx context.Context, origin, destination string) (*Directions, error) {
	key := "directions:" + origin + "|" + destination
	d, err := cache.GetOrSet(ctx, c.cache, c.metrics, key, c.routeTTL, func() (Directions, error) {
		d, err := c.Provider.Directions(ctx, origin, destination)
		if err != nil {
			return Directions{}, err
		}
		return *d, nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Elevation keys on the encoded polyline of points.
func (c *Cached) Elevation(ctx context.Context, points []models.Location) ([]ElevationSample, error) {
	if len(points) == 0 {
		return c.Provider.Elevation(ctx, points)
	}
	key := "elevation:" + geo.EncodePolyline(points)
	return cache.GetOrSet(ctx, c.cache, c.metrics, key, c.elevationTTL, func() ([]ElevationSample, error) {
		return c.Provider.Elevation(ctx, points)
	})
}
