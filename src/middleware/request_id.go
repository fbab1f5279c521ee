package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assafrot/api-keys-app/src/logging"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "request_id"

// RequestIDMiddleware adds a unique request ID to each request and attaches a
// request-scoped logger to the request context
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			// Generate short UUID for readability
			requestID = uuid.New().String()[:8]
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		logger := logging.WithRequestID(requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Logger returns the request-scoped logger, tagged with component
func Logger(c *gin.Context, component string) *zerolog.Logger {
	logger := zerolog.Ctx(c.Request.Context()).With().Str("component", component).Logger()
	return &logger
}
