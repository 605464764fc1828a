package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
)

// AppError is the error type returned across package boundaries. Callers
// branch on Code; Message is safe to show to the user.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so errors.Is(err, ErrRecordNotFound)
// works regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds additional details to an error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// ErrRecordNotFound is the comparison target for errors.Is on missing rows.
var ErrRecordNotFound = &AppError{Code: ErrNotFound, Message: "record not found"}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  ErrNotFound.StatusCode(),
	}
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(field, message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Field:   field,
		Status:  ErrValidation.StatusCode(),
	}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Status:  ErrBadRequest.StatusCode(),
	}
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  ErrUnauthorized.StatusCode(),
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *AppError {
	return &AppError{
		Code:    ErrInternalError,
		Message: message,
		Status:  ErrInternalError.StatusCode(),
	}
}

// Subscription creates a SUBSCRIPTION error for realtime channel failures
func Subscription(topic, reason string) *AppError {
	return &AppError{
		Code:    ErrSubscription,
		Message: fmt.Sprintf("subscription %s failed: %s", topic, reason),
	}
}

// FromStatus builds an error for a non-2xx backend response
func FromStatus(status int, operation string, body string) *AppError {
	code := CodeForStatus(status)
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf("%s failed with status %d", operation, status),
		Details: strings.TrimSpace(body),
		Status:  status,
	}
}

// IsNotFound reports whether err means the requested record does not exist
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrRecordNotFound)
}

// Categorize converts an arbitrary error into an AppError
func Categorize(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return &AppError{Code: ErrTimeout, Message: "request timed out", Cause: err}
	}

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused"), strings.Contains(errMsg, "no such host"):
		return &AppError{Code: ErrNetwork, Message: "could not reach the server", Cause: err}
	case strings.Contains(errMsg, "timeout"):
		return &AppError{Code: ErrTimeout, Message: "request timed out", Cause: err}
	default:
		return &AppError{Code: ErrUnknown, Message: errMsg, Cause: err}
	}
}

// UserMessage returns the text shown in a failure toast for err
func UserMessage(err error) string {
	appErr := Categorize(err)
	if appErr == nil {
		return ""
	}
	switch appErr.Code {
	case ErrNetwork:
		return "Could not reach the server. Check your connection and try again."
	case ErrTimeout:
		return "The server took too long to respond. Try again in a moment."
	case ErrUnauthorized:
		return "Your session has expired. Log in again."
	case ErrForbidden:
		return "You don't have permission to do that."
	default:
		return appErr.Message
	}
}
