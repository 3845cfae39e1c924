package routing

import (
	"sort"
	"sync"
	"time"

	"github.com/vietddude/searchrelay/internal/core/clock"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// BreakerConfig configures every breaker created by a Breakers registry.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	// OnStateChange is called outside the breaker lock on every transition.
	OnStateChange func(key string, from, to State)
}

// DefaultBreakerConfig opens after 5 consecutive failures and cools down for 60s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// BreakerSnapshot is a read-only view of a breaker.
type BreakerSnapshot struct {
	Key                 string    `json:"key"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	Trips               int       `json:"trips"`
}

// Ticket is an admission handed out by Allow. Outcomes are reported with the
// ticket so that a call admitted before the last transition cannot move the
// breaker.
type Ticket struct {
	gen   uint64
	Trial bool
}

// CircuitBreaker guards a single destination.
type CircuitBreaker struct {
	mu            sync.Mutex
	key           string
	cfg           BreakerConfig
	clock         clock.Clock
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool
	trips         int
	// gen is bumped on every open and close.
	gen uint64
}

// NewCircuitBreaker creates a closed breaker for key.
func NewCircuitBreaker(key string, cfg BreakerConfig, clk clock.Clock) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	if clk == nil {
		clk = clock.New()
	}
	return &CircuitBreaker{key: key, cfg: cfg, clock: clk, state: StateClosed}
}

// Allow admits or rejects a call. The returned ticket has Trial set when the
// call is the single HALF_OPEN probe, whose outcome alone decides the next state.
func (cb *CircuitBreaker) Allow() (Ticket, error) {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		elapsed := cb.clock.Now().Sub(cb.openedAt)
		if elapsed < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return Ticket{}, &CircuitOpenError{Destination: cb.key, RetryAfter: cb.cfg.Cooldown - elapsed}
		}
		cb.state = StateHalfOpen
		cb.probeInFlight = true
	case StateHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return Ticket{}, &CircuitOpenError{Destination: cb.key}
		}
		cb.probeInFlight = true
	}
	t := Ticket{gen: cb.gen, Trial: cb.state == StateHalfOpen}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return t, nil
}

// RecordSuccess clears the failure count and closes a HALF_OPEN breaker.
// Outcomes from an older generation are ignored.
func (cb *CircuitBreaker) RecordSuccess(t Ticket) {
	cb.mu.Lock()
	if t.gen != cb.gen {
		cb.mu.Unlock()
		return
	}
	from := cb.state
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.close()
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// RecordFailure counts a failed call. A failed trial reopens immediately.
// Outcomes from an older generation are ignored.
func (cb *CircuitBreaker) RecordFailure(t Ticket) {
	cb.mu.Lock()
	if t.gen != cb.gen {
		cb.mu.Unlock()
		return
	}
	from := cb.state
	cb.failures++
	switch cb.state {
	case StateHalfOpen:
		cb.open()
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// Release gives back a trial slot whose call ended without a verdict (caller cancelled).
func (cb *CircuitBreaker) Release(t Ticket) {
	cb.mu.Lock()
	if t.Trial && t.gen == cb.gen {
		cb.probeInFlight = false
	}
	cb.mu.Unlock()
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.failures = 0
	if cb.state != StateClosed {
		cb.close()
	}
	cb.mu.Unlock()

	cb.notify(from, StateClosed)
}

// State returns the current state without side effects.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns a copy of the breaker's counters.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Key:                 cb.key,
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		OpenedAt:            cb.openedAt,
		Trips:               cb.trips,
	}
}

// open and close must be called with mu held.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.clock.Now()
	cb.probeInFlight = false
	cb.trips++
	cb.gen++
}

func (cb *CircuitBreaker) close() {
	cb.state = StateClosed
	cb.probeInFlight = false
	cb.gen++
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.key, from, to)
	}
}

// Breakers lazily creates one breaker per destination key.
type Breakers struct {
	mu    sync.RWMutex
	cfg   BreakerConfig
	clock clock.Clock
	items map[string]*CircuitBreaker
}

// NewBreakers creates an empty registry.
func NewBreakers(cfg BreakerConfig, clk clock.Clock) *Breakers {
	return &Breakers{cfg: cfg, clock: clk, items: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for key, creating it on first use.
func (b *Breakers) Get(key string) *CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.items[key]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok = b.items[key]; ok {
		return cb
	}
	cb = NewCircuitBreaker(key, b.cfg, b.clock)
	b.items[key] = cb
	return cb
}

// Lookup returns the breaker for key only if it already exists.
func (b *Breakers) Lookup(key string) (*CircuitBreaker, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cb, ok := b.items[key]
	return cb, ok
}

// Remove drops the breaker for key.
func (b *Breakers) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.items, key)
}

// Snapshots returns every breaker sorted by key.
func (b *Breakers) Snapshots() []BreakerSnapshot {
	b.mu.RLock()
	out := make([]BreakerSnapshot, 0, len(b.items))
	for _, cb := range b.items {
		out = append(out, cb.Snapshot())
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
