package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	r := NewRegistry()
	r.JobFinished("done")
	r.CacheHit("weather")
	r.SetQueueDepth(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`journey_pipeline_jobs_total{state="done"} 1`,
		`journey_cache_hits_total{cache_key_pattern="weather"} 1`,
		`journey_pipeline_queue_depth 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilRegistryHelpersAreNoops(t *testing.T) {
	var r *Registry
	r.JobFinished("failed")
	r.ObserveStage("directions", 1)
	r.SetQueueDepth(1)
	r.CacheMiss("traffic")
}
