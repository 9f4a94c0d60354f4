package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-dept-api/internal/service"
)

// Metrics records one HTTP observation per request, labelled by the
// route template rather than the raw path.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
