package routing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Resolution strategies attached to classified errors.
const (
	ResolveRetryBackoff = "retry with exponential backoff"
	ResolveFailover     = "fail over to the next provider"
	ResolveCredentials  = "check API credentials and account access"
	ResolveFixRequest   = "fix request parameters"
	ResolveWaitCooldown = "wait for the circuit breaker cooldown"
	ResolveInvestigate  = "inspect provider logs and response"
	ResolveNone         = "none"
)

// Classification is the result of classifying a failure.
type Classification struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Resolution string
	StatusCode int
}

// Retryable reports whether the failure is worth another attempt against the same destination.
func (c Classification) Retryable(retryServerErrors bool) bool {
	switch c.Type {
	case ErrorTemporary:
		return true
	case ErrorServer:
		return retryServerErrors
	default:
		return false
	}
}

var throttlePatterns = []string{
	"too many requests",
	"rate limit",
	"quota",
	"plan limit",
	"count exceeded",
}

// Classify maps any failure to a type, severity, message and resolution.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Type: ErrorUnknown, Severity: SeverityLow, Message: "no error", Resolution: ResolveNone}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return Classification{
			Type:       ErrorClient,
			Severity:   SeverityHigh,
			Message:    "validation failed: " + validationErr.Message,
			Resolution: ResolveFixRequest,
		}
	}

	if IsCircuitOpen(err) {
		return Classification{
			Type:       ErrorTemporary,
			Severity:   SeverityLow,
			Message:    "circuit breaker open",
			Resolution: ResolveWaitCooldown,
		}
	}

	if isTimeout(err) {
		return Classification{
			Type:       ErrorTemporary,
			Severity:   SeverityMedium,
			Message:    "request timed out",
			Resolution: ResolveRetryBackoff,
		}
	}

	if errors.Is(err, context.Canceled) {
		return Classification{
			Type:       ErrorUnknown,
			Severity:   SeverityLow,
			Message:    "request cancelled",
			Resolution: ResolveNone,
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range throttlePatterns {
		if strings.Contains(lower, p) {
			return Classification{
				Type:       ErrorTemporary,
				Severity:   SeverityMedium,
				Message:    "rate limit exceeded",
				Resolution: ResolveRetryBackoff,
			}
		}
	}

	return Classification{
		Type:       ErrorUnknown,
		Severity:   SeverityMedium,
		Message:    err.Error(),
		Resolution: ResolveFailover,
	}
}

func classifyStatus(code int) Classification {
	c := Classification{StatusCode: code}
	switch {
	case code == 429:
		c.Type, c.Severity = ErrorTemporary, SeverityMedium
		c.Message, c.Resolution = "rate limit exceeded", ResolveRetryBackoff
	case code == 503 || code == 504:
		c.Type, c.Severity = ErrorTemporary, SeverityHigh
		c.Message, c.Resolution = "service temporarily unavailable", ResolveRetryBackoff
	case code == 401 || code == 403:
		c.Type, c.Severity = ErrorClient, SeverityHigh
		c.Message, c.Resolution = "authentication/access denied", ResolveCredentials
	case code == 404:
		c.Type, c.Severity = ErrorClient, SeverityHigh
		c.Message, c.Resolution = "resource not found", ResolveFixRequest
	case code >= 400 && code < 500:
		c.Type, c.Severity = ErrorClient, SeverityHigh
		c.Message, c.Resolution = fmt.Sprintf("client error (status %d)", code), ResolveFixRequest
	case code >= 500:
		c.Type, c.Severity = ErrorServer, SeverityCritical
		c.Message, c.Resolution = fmt.Sprintf("server error (status %d)", code), ResolveFailover
	default:
		c.Type, c.Severity = ErrorUnknown, SeverityMedium
		c.Message, c.Resolution = fmt.Sprintf("unexpected status %d", code), ResolveInvestigate
	}
	return c
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
