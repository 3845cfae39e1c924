// Package budget enforces per-provider request quotas.
//
// This package contains:
//   - Counter: fixed-window per-minute and per-day request counters
//   - Pacer: minimum spacing between requests to one provider
package budget

import (
	"sort"
	"sync"
	"time"

	"github.com/vietddude/searchrelay/internal/core/clock"
	"github.com/vietddude/searchrelay/internal/core/domain"
)

type entry struct {
	mu    sync.Mutex
	limit domain.RateLimit
	count domain.RequestCount
}

// Counter tracks request usage per provider in fixed minute and day windows.
type Counter struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]*entry
}

// NewCounter creates an empty counter.
func NewCounter(clk clock.Clock) *Counter {
	if clk == nil {
		clk = clock.New()
	}
	return &Counter{clock: clk, entries: make(map[string]*entry)}
}

// SetLimit registers or updates the limit for a provider.
func (c *Counter) SetLimit(name string, limit domain.RateLimit) {
	e := c.entry(name)
	e.mu.Lock()
	e.limit = limit
	e.mu.Unlock()
}

// Remove forgets a provider. Later calls for it are no-ops until SetLimit
// registers it again.
func (c *Counter) Remove(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// Allow reports whether one more request fits both windows. Unregistered
// providers have no limit.
func (c *Counter) Allow(name string) bool {
	e, ok := c.find(name)
	if !ok {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c.roll(e)
	if e.limit.PerMinute > 0 && e.count.Minute >= e.limit.PerMinute {
		return false
	}
	if e.limit.PerDay > 0 && e.count.Day >= e.limit.PerDay {
		return false
	}
	return true
}

// Record counts one completed request against a registered provider.
func (c *Counter) Record(name string) {
	e, ok := c.find(name)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c.roll(e)
	e.count.Minute++
	e.count.Day++
}

// Snapshot returns the current counts for a provider, zero if unregistered.
func (c *Counter) Snapshot(name string) domain.RequestCount {
	count, _ := c.Lookup(name)
	return count
}

// Lookup returns the current counts for a registered provider.
func (c *Counter) Lookup(name string) (domain.RequestCount, bool) {
	e, ok := c.find(name)
	if !ok {
		return domain.RequestCount{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c.roll(e)
	return e.count, true
}

// Snapshots returns counts for every provider.
func (c *Counter) Snapshots() map[string]domain.RequestCount {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	out := make(map[string]domain.RequestCount, len(names))
	for _, name := range names {
		if count, ok := c.Lookup(name); ok {
			out[name] = count
		}
	}
	return out
}

func (c *Counter) find(name string) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

func (c *Counter) entry(name string) *entry {
	if e, ok := c.find(name); ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		return e
	}
	now := c.clock.Now()
	e := &entry{count: domain.RequestCount{
		MinuteStart: now.Truncate(time.Minute),
		DayStart:    startOfDay(now),
		LastReset:   now,
	}}
	c.entries[name] = e
	return e
}

// roll resets windows that have ended. Caller holds e.mu.
func (c *Counter) roll(e *entry) {
	now := c.clock.Now()
	if minute := now.Truncate(time.Minute); minute.After(e.count.MinuteStart) {
		e.count.Minute = 0
		e.count.MinuteStart = minute
		e.count.LastReset = now
	}
	if day := startOfDay(now); day.After(e.count.DayStart) {
		e.count.Day = 0
		e.count.DayStart = day
		e.count.LastReset = now
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
