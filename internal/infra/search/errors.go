package search

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAllProvidersFailed is matched by every AllProvidersError.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrUnknownProvider is returned by admin operations on unregistered names.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoProviders means no provider was eligible for the search.
	ErrNoProviders = errors.New("no eligible providers")
)

// AllProvidersError is returned when every candidate provider failed.
type AllProvidersError struct {
	Attempted []string
	Last      error
}

func (e *AllProvidersError) Error() string {
	attempted := "none"
	if len(e.Attempted) > 0 {
		attempted = strings.Join(e.Attempted, ", ")
	}
	return fmt.Sprintf("all providers failed (attempted: %s): %v", attempted, e.Last)
}

func (e *AllProvidersError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

func (e *AllProvidersError) Unwrap() error {
	return e.Last
}

// IsAllProvidersFailed reports whether err is an aggregate search failure.
func IsAllProvidersFailed(err error) bool {
	return errors.Is(err, ErrAllProvidersFailed)
}
