package routing

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is matched by every CircuitOpenError.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrorType is the broad class of a failure.
type ErrorType string

const (
	ErrorTemporary ErrorType = "temporary"
	ErrorPermanent ErrorType = "permanent"
	ErrorClient    ErrorType = "client"
	ErrorServer    ErrorType = "server"
	ErrorUnknown   ErrorType = "unknown"
)

// Severity ranks how serious a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// StatusError is returned by fetchers for non-2xx HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// ValidationError reports a bad request or an unusable response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// CircuitOpenError is returned without calling the destination while its breaker is open.
type CircuitOpenError struct {
	Destination string
	RetryAfter  time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker open for %s (retry in %s)", e.Destination, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit breaker open for %s (trial in flight)", e.Destination)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// APIError is the typed failure returned once the executor gives up on a destination.
type APIError struct {
	Destination string
	Type        ErrorType
	Severity    Severity
	Message     string
	Resolution  string
	StatusCode  int
	Attempts    int
	Err         error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s [%s/%s] after %d attempt(s): %v",
		e.Destination, e.Message, e.Type, e.Severity, e.Attempts, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen reports whether err was caused by an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// AsAPIError extracts the APIError from err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
