package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the API server.
type Registry struct {
	reg *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Pipeline
	PipelineJobsTotal     *prometheus.CounterVec
	PipelineStageDuration *prometheus.HistogramVec
	QueueDepth            prometheus.Gauge

	// Cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Push
	WebSocketClients prometheus.Gauge
}

// NewRegistry creates metrics on a private registry so several instances can coexist in tests.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "journey_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "journey_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),
		PipelineJobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_pipeline_jobs_total",
				Help: "Route pipeline jobs by final state",
			},
			[]string{"state"},
		),
		PipelineStageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "journey_pipeline_stage_duration_seconds",
				Help:    "Route pipeline stage execution time in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "journey_pipeline_queue_depth",
				Help: "Jobs waiting for a pipeline worker",
			},
		),
		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_cache_hits_total",
				Help: "Total cache hits by key prefix",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_cache_misses_total",
				Help: "Total cache misses by key prefix",
			},
			[]string{"cache_key_pattern"},
		),
		WebSocketClients: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "journey_websocket_clients",
				Help: "Connected websocket clients",
			},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// The helpers below accept a nil receiver so components can run without metrics.

func (r *Registry) ObserveStage(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.PipelineStageDuration.WithLabelValues(stage).Observe(seconds)
}

func (r *Registry) JobFinished(state string) {
	if r == nil {
		return
	}
	r.PipelineJobsTotal.WithLabelValues(state).Inc()
}

func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

func (r *Registry) CacheHit(pattern string) {
	if r == nil {
		return
	}
	r.CacheHitsTotal.WithLabelValues(pattern).Inc()
}

func (r *Registry) CacheMiss(pattern string) {
	if r == nil {
		return
	}
	r.CacheMissesTotal.WithLabelValues(pattern).Inc()
}

func (r *Registry) SetWebSocketClients(n int) {
	if r == nil {
		return
	}
	r.WebSocketClients.Set(float64(n))
}
