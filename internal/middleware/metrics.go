package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
)

// unrouted labels requests that matched no route so 404 probes cannot blow
// up label cardinality.
const unrouted = "<unrouted>"

// Metrics records every request against its route template. Paths in skip are
// served but not observed.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	ignored := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		ignored[p] = struct{}{}
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := ignored[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = unrouted
		}
		metrics.TrackInFlight(1)
		began := time.Now()
		defer func() {
			metrics.TrackInFlight(-1)
			metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(began))
		}()
		c.Next()
	}
}
