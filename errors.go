package sonargate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error type tags used to classify failures without inspecting raw transport
// details at every call site.
const (
	ErrorTypeAuthentication = "Authentication"
	ErrorTypeAuthorization  = "Authorization"
	ErrorTypeNotFound       = "NotFound"
	ErrorTypeValidation     = "Validation"
	ErrorTypeConflict       = "Conflict"
	ErrorTypeRateLimit      = "RateLimit"
	ErrorTypeNetwork        = "Network"
	ErrorTypeTimeout        = "Timeout"
	ErrorTypeServer         = "Server"
	ErrorTypeCircuitOpen    = "CircuitOpen"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrUnknownResourceType is returned when a resource type has no TTL
	// policy or endpoint registration. Unknown types fail fast instead of
	// defaulting silently.
	ErrUnknownResourceType = errors.New("sonargate: unknown resource type")

	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("sonargate: circuit open")
)

// Error is a classified upstream failure. Type drives retry decisions,
// StatusCode and Body carry upstream detail, and Attempts records how many
// tries the retry orchestrator spent before surfacing it.
type Error struct {
	Type       string
	Message    string
	StatusCode int
	Body       string
	Attempts   int
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors by classification type.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// classifyStatus maps an HTTP status code to an error type tag.
func classifyStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypeAuthorization
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	}
	if status >= 500 {
		return ErrorTypeServer
	}
	return ErrorTypeValidation
}

// newHTTPError builds a classified error for a non-2xx upstream response.
func newHTTPError(status int, body string, retryAfter time.Duration) *Error {
	return &Error{
		Type:       classifyStatus(status),
		Message:    fmt.Sprintf("upstream returned %s", http.StatusText(status)),
		StatusCode: status,
		Body:       body,
		RetryAfter: retryAfter,
	}
}

// ctxError wraps a context cancellation or deadline into a classified error.
func ctxError(cause error, msg string) *Error {
	typ := ErrorTypeNetwork
	if errors.Is(cause, context.DeadlineExceeded) {
		typ = ErrorTypeTimeout
	}
	return &Error{Type: typ, Message: msg, Cause: cause}
}
