package middleware

import (
	"strconv"
	"time"

	"journey-risk-api-server/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request counts, latency and in-flight requests per route pattern.
func Metrics(reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reg == nil {
			c.Next()
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		reg.HTTPRequestsInFlight.WithLabelValues(endpoint).Inc()
		defer reg.HTTPRequestsInFlight.WithLabelValues(endpoint).Dec()

		start := time.Now()
		c.Next()

		reg.HTTPRequestsTotal.WithLabelValues(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		reg.HTTPRequestDuration.WithLabelValues(endpoint, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
