package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// quietPaths are probed constantly and only logged at debug level
var quietPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// LoggingMiddleware logs all HTTP requests with structured fields
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case quietPaths[path]:
			event = log.Debug()
		default:
			event = log.Info()
		}

		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP())

		if ownerID := GetOwnerID(c); ownerID != "" {
			event.Str("owner_id", ownerID)
		}

		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			event.Msg("server error")
		case status >= 400:
			event.Msg("client error")
		default:
			event.Msg("request")
		}
	}
}
