package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hms-scope/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request count and latency per route. Requests that match no
// route share one label so requests for random paths cannot grow the series set.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
