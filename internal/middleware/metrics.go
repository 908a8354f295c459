package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/ruz-auth/pkg/metrics"
)

// Metrics reports latency and status of every request, labelled by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordHTTPRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
