package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
)

// RequestLogger logs one line per request through the package logger. Query
// strings are left out; they may carry identifiers the shell relays.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		l := logger.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
		switch {
		case status >= 500:
			l.Error("request")
		case status >= 400:
			l.Info("request")
		default:
			l.Debug("request")
		}
	}
}
