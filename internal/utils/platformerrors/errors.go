package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/conversation"
)

type requestIDKey struct{}

// WithRequestID stores the request ID on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeConflict       ErrorType = "CONFLICT"
	ErrorTypeUnauthorized   ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal       ErrorType = "INTERNAL"
	ErrorTypeExternal       ErrorType = "EXTERNAL"
	ErrorTypeUnavailable    ErrorType = "UNAVAILABLE"
	ErrorTypeNotImplemented ErrorType = "NOT_IMPLEMENTED"
)

// Layer represents the application layer where the error occurred
type Layer string

const (
	LayerDomain         Layer = "domain"
	LayerHandler        Layer = "handler"
	LayerRoute          Layer = "route"
	LayerInfrastructure Layer = "infrastructure"
)

// PlatformError represents an error with context and metadata
type PlatformError struct {
	UUID      string
	Type      ErrorType
	Message   string
	Err       error
	RequestID string
	Layer     Layer
	Timestamp time.Time
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s][%s][%s] %s: %v", e.Layer, e.Type, e.UUID, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s][%s][%s] %s", e.Layer, e.Type, e.UUID, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewError creates a PlatformError. An empty customUUID gets a fresh one.
func NewError(ctx context.Context, layer Layer, errorType ErrorType, message string, err error, customUUID string) *PlatformError {
	errorUUID := customUUID
	if errorUUID == "" {
		errorUUID = uuid.NewString()
	}
	return &PlatformError{
		UUID:      errorUUID,
		Type:      errorType,
		Message:   message,
		Err:       err,
		RequestID: RequestIDFromContext(ctx),
		Layer:     layer,
		Timestamp: time.Now().UTC(),
	}
}

// AsError wraps err with layer context, classifying conversation errors.
func AsError(ctx context.Context, layer Layer, err error, message string) *PlatformError {
	if err == nil {
		return nil
	}

	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return NewError(ctx, layer, platformErr.Type, fmt.Sprintf("%s: %s", message, platformErr.Message), platformErr, platformErr.UUID)
	}

	errorType, public := classify(err)
	if public != "" {
		message = public
	}
	return NewError(ctx, layer, errorType, message, err, "")
}

func classify(err error) (ErrorType, string) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		return ErrorTypeNotFound, "conversation not found"
	case errors.Is(err, conversation.ErrTurnInFlight):
		return ErrorTypeConflict, "a reply is still streaming"
	case errors.Is(err, conversation.ErrReadOnly):
		return ErrorTypeConflict, "conversation is archived and read-only"
	case errors.Is(err, conversation.ErrConversationExists):
		return ErrorTypeConflict, "conversation already exists"
	case errors.Is(err, conversation.ErrServiceClosed):
		return ErrorTypeUnavailable, "service is shutting down"
	default:
		return ErrorTypeInternal, ""
	}
}

// ErrorTypeToHTTPStatus maps error types to HTTP status codes
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeNotImplemented:
		return http.StatusNotImplemented
	case ErrorTypeExternal:
		return http.StatusBadGateway
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsErrorType checks if an error is a PlatformError with the specified type
func IsErrorType(err error, errorType ErrorType) bool {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Type == errorType
	}
	return false
}

// LogError logs a platform error. Client errors log at warn, the rest at error.
func LogError(logger zerolog.Logger, err *PlatformError) {
	if err == nil {
		return
	}

	event := logger.Error()
	if ErrorTypeToHTTPStatus(err.Type) < http.StatusInternalServerError {
		event = logger.Warn()
	}
	event = event.
		Str("error_uuid", err.UUID).
		Str("error_type", string(err.Type)).
		Str("layer", string(err.Layer))
	if err.RequestID != "" {
		event = event.Str("request_id", err.RequestID)
	}
	if err.Err != nil {
		event = event.Err(err.Err)
	}
	event.Msg(err.Message)
}
