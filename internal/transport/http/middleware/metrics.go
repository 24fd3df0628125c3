package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records latency and counts per route template, so /todos/:id is a
// single series regardless of the id. Unmatched paths collapse to "unmatched".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.HTTPRequestsInFlight.Dec()

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{c.Request.Method, route, strconv.Itoa(c.Writer.Status())}
			metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		}()

		c.Next()
	}
}
