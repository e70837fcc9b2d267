package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/janhq/jan-widget/internal/utils/platformerrors"
)

const (
	// RequestIDHeader is the header key for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for request ID.
	RequestIDKey = "request_id"
)

// RequestID propagates X-Request-ID or generates one, and stores it on both
// the gin context and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Request = c.Request.WithContext(platformerrors.WithRequestID(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
