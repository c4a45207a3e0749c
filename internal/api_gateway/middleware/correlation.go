package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader is the HTTP header carrying the request correlation ID
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDKey is the gin context key the correlation ID is stored under
const CorrelationIDKey = "correlation_id"

// CorrelationID attaches a correlation ID to every request. An inbound
// header value is trusted and echoed back; otherwise a fresh one is minted.
// The ID follows the request through the intake Kafka message and into the
// audit trail.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// GetCorrelationID returns the request's correlation ID, or "" when the
// middleware has not run.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
