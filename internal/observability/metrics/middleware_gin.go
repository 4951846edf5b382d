package metrics

import "github.com/gin-gonic/gin"

// GinMiddleware counts requests per route template.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.RecordHTTPRequest(c.Request.Context(), route, c.Writer.Status())
	}
}
