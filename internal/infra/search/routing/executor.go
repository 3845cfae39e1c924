// Package routing holds the request reliability primitives shared by every
// outbound call.
//
// This package contains:
//   - Classify: maps failures to a type, severity and resolution
//   - CircuitBreaker: per-destination CLOSED/OPEN/HALF_OPEN state machine
//   - Executor: retry with exponential backoff, timeouts and an optional fallback
package routing

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vietddude/searchrelay/internal/core/clock"
)

// Work is one attempt against a destination.
type Work func(ctx context.Context) (any, error)

// Fallback produces a substitute result once the destination has failed.
type Fallback func(ctx context.Context, cause error) (any, error)

// Options control a single Execute call.
type Options struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Timeout           time.Duration
	RetryServerErrors bool
	Jitter            bool
	Fallback          Fallback
}

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Executor runs work through the breaker of its destination and retries
// classified-temporary failures.
type Executor struct {
	breakers *Breakers
	clock    clock.Clock
}

// NewExecutor creates an executor whose breakers use cfg.
func NewExecutor(cfg BreakerConfig, clk clock.Clock) *Executor {
	if clk == nil {
		clk = clock.New()
	}
	return &Executor{breakers: NewBreakers(cfg, clk), clock: clk}
}

// Breakers exposes the executor's breaker registry.
func (e *Executor) Breakers() *Breakers {
	return e.breakers
}

// Execute runs work against key. It fails fast with a CircuitOpenError while
// the breaker is open and returns an APIError once retries are exhausted.
// When opts.Fallback is set its result replaces either failure.
func (e *Executor) Execute(ctx context.Context, key string, work Work, opts Options) (any, error) {
	result, err := e.execute(ctx, key, work, opts)
	if err != nil && opts.Fallback != nil {
		return opts.Fallback(ctx, err)
	}
	return result, err
}

func (e *Executor) execute(ctx context.Context, key string, work Work, opts Options) (any, error) {
	cb := e.breakers.Get(key)

	var lastErr error
	var class Classification
	for attempt := 0; ; attempt++ {
		ticket, err := cb.Allow()
		if err != nil {
			if lastErr == nil {
				return nil, err
			}
			return nil, newAPIError(key, lastErr, class, attempt)
		}

		result, err := e.attempt(ctx, work, opts.Timeout)
		if err == nil {
			cb.RecordSuccess(ticket)
			return result, nil
		}

		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the destination.
			cb.Release(ticket)
			return nil, newAPIError(key, ctx.Err(), Classify(ctx.Err()), attempt+1)
		}

		cb.RecordFailure(ticket)
		lastErr = err
		class = Classify(err)

		if ticket.Trial || cb.State() == StateOpen || attempt >= opts.MaxRetries || !class.Retryable(opts.RetryServerErrors) {
			return nil, newAPIError(key, lastErr, class, attempt+1)
		}

		select {
		case <-ctx.Done():
			return nil, newAPIError(key, ctx.Err(), Classify(ctx.Err()), attempt+1)
		case <-e.clock.After(Backoff(attempt, opts)):
		}
	}
}

func (e *Executor) attempt(ctx context.Context, work Work, timeout time.Duration) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return work(ctx)
}

// Backoff returns baseDelay * 2^attempt capped at maxDelay, optionally
// jittered into [delay/2, delay].
func Backoff(attempt int, opts Options) time.Duration {
	base := opts.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if opts.Jitter {
		delay = delay/2 + rand.Float64()*delay/2
	}
	return time.Duration(delay)
}

func newAPIError(key string, err error, class Classification, attempts int) *APIError {
	return &APIError{
		Destination: key,
		Type:        class.Type,
		Severity:    class.Severity,
		Message:     class.Message,
		Resolution:  class.Resolution,
		StatusCode:  class.StatusCode,
		Attempts:    attempts,
		Err:         err,
	}
}
