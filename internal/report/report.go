// Package report exports a route's risk assessment as a JSON document to object storage.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/risk"

	"github.com/google/uuid"
)

// ErrNotReady is returned for routes that have not completed.
var ErrNotReady = errors.New("route has not completed")

const contentType = "application/json"

type Uploader interface {
	Upload(ctx context.Context, objectKey string, body io.Reader, contentType string) (string, error)
}

type Report struct {
	RouteID           string                `json:"route_id"`
	Name              string                `json:"name"`
	Origin            string                `json:"origin"`
	Destination       string                `json:"destination"`
	Distance          *string               `json:"distance"`
	Duration          *string               `json:"duration"`
	OptimizedDuration *string               `json:"optimized_duration"`
	GeneratedAt       time.Time             `json:"generated_at"`
	Assessment        risk.Assessment       `json:"risk_assessment"`
	Recommendations   []risk.Recommendation `json:"safety_recommendations"`
	RiskData          *models.RiskData      `json:"risk_data"`
}

// Build assembles the report for a completed route.
func Build(route *models.Route, rd *models.RiskData, t risk.Thresholds, now time.Time) Report {
	return Report{
		RouteID:           route.RouteID,
		Name:              route.DisplayName(),
		Origin:            route.Origin.Address,
		Destination:       route.Destination.Address,
		Distance:          route.Distance,
		Duration:          route.Duration,
		OptimizedDuration: route.OptimizedDuration,
		GeneratedAt:       now,
		Assessment:        t.Assess(rd),
		Recommendations:   risk.Recommendations(rd),
		RiskData:          rd,
	}
}

type Result struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Exporter struct {
	Store      *repository.Store
	Uploader   Uploader
	Thresholds risk.Thresholds
	Prefix     string
	Now        func() time.Time
}

func NewExporter(store *repository.Store, up Uploader, t risk.Thresholds, prefix string) *Exporter {
	return &Exporter{Store: store, Uploader: up, Thresholds: t, Prefix: prefix, Now: func() time.Time { return time.Now().UTC() }}
}

// Export uploads the report for route under <prefix>/<route_id>/<uuid>.json.
func (e *Exporter) Export(ctx context.Context, route *models.Route) (*Result, error) {
	if route.Status != models.RouteStatusCompleted {
		return nil, ErrNotReady
	}
	rd, err := e.Store.RiskData.Get(ctx, route.RouteID)
	if err != nil {
		return nil, fmt.Errorf("load risk data: %w", err)
	}

	now := e.Now()
	body, err := json.MarshalIndent(Build(route, rd, e.Thresholds, now), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	key := path.Join(e.Prefix, route.RouteID, uuid.NewString()+".json")
	url, err := e.Uploader.Upload(ctx, key, bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	return &Result{Key: key, URL: url, GeneratedAt: now}, nil
}
