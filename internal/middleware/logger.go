package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/logging"
)

func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(map[string]any{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Errorf("request failed: %s", c.Errors.String())
			return
		}
		entry.Debugf("request")
	}
}
