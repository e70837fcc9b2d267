package platformerrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HTTPErrorResponse represents the standard error response format.
type HTTPErrorResponse struct {
	Error *HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail contains error details for HTTP responses.
type HTTPErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteHTTPError writes a PlatformError as an HTTP response.
func WriteHTTPError(c *gin.Context, err *PlatformError, log zerolog.Logger) {
	if err == nil {
		WriteInternalError(c, "unknown error")
		return
	}

	LogError(log, err)
	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(err.Type), HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message:   err.Message,
			Type:      errorTypeToString(err.Type),
			Code:      err.UUID,
			RequestID: err.RequestID,
		},
	})
}

// WriteError classifies err and writes it. Unknown errors become a generic
// internal error so upstream details never reach clients.
func WriteError(c *gin.Context, err error, log zerolog.Logger) {
	if err == nil {
		WriteInternalError(c, "unknown error")
		return
	}
	pe := AsError(c.Request.Context(), LayerHandler, err, "internal error")
	WriteHTTPError(c, pe, log)
}

// WriteValidationError writes a 400 Bad Request response.
func WriteValidationError(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, message, ErrorTypeValidation)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(c *gin.Context, message string) {
	write(c, http.StatusUnauthorized, message, ErrorTypeUnauthorized)
}

// WriteUnavailable writes a 503 Service Unavailable response.
func WriteUnavailable(c *gin.Context, message string) {
	write(c, http.StatusServiceUnavailable, message, ErrorTypeUnavailable)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(c *gin.Context, message string) {
	write(c, http.StatusInternalServerError, message, ErrorTypeInternal)
}

func write(c *gin.Context, status int, message string, t ErrorType) {
	c.AbortWithStatusJSON(status, HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message:   message,
			Type:      errorTypeToString(t),
			RequestID: RequestIDFromContext(c.Request.Context()),
		},
	})
}

func errorTypeToString(t ErrorType) string {
	switch t {
	case ErrorTypeNotFound:
		return "not_found_error"
	case ErrorTypeValidation:
		return "validation_error"
	case ErrorTypeConflict:
		return "conflict_error"
	case ErrorTypeUnauthorized:
		return "unauthorized_error"
	case ErrorTypeNotImplemented:
		return "not_implemented_error"
	case ErrorTypeExternal:
		return "external_error"
	case ErrorTypeUnavailable:
		return "unavailable_error"
	default:
		return "internal_error"
	}
}
