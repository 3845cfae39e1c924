package search

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
	"github.com/vietddude/searchrelay/internal/monitoring/metrics"
)

// ProviderSnapshot is the full runtime view of one provider.
type ProviderSnapshot struct {
	Config   domain.ProviderConfig   `json:"config"`
	Health   domain.ProviderHealth   `json:"health"`
	Requests domain.RequestCount     `json:"requests"`
	Breaker  routing.BreakerSnapshot `json:"breaker"`
}

// Snapshot is the exportable state of every provider.
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Providers []ProviderSnapshot `json:"providers"`
}

// AddProvider registers a provider with fresh health and counters.
func (s *System) AddProvider(cfg domain.ProviderConfig) error {
	if cfg.Name == "" {
		return &routing.ValidationError{Field: "name", Message: "provider name is required"}
	}
	adapter, err := s.registry.Lookup(cfg)
	if err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	s.mu.Lock()
	if _, exists := s.providers[cfg.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("provider %s already registered", cfg.Name)
	}
	e := &providerEntry{cfg: cfg, health: domain.NewProviderHealth(), adapter: adapter}
	s.providers[cfg.Name] = e
	s.mu.Unlock()

	s.counter.SetLimit(cfg.Name, cfg.RateLimit)
	s.pacer.SetInterval(cfg.Name, cfg.MinInterval)
	observeHealth(cfg.Name, e.health)
	observeBreaker(cfg.Name, routing.StateClosed)

	slog.Info("Registered search provider",
		"provider", cfg.Name,
		"type", adapter.Type(),
		"priority", cfg.Priority,
		"enabled", cfg.Enabled,
	)
	return nil
}

// RemoveProvider unregisters a provider and drops its counters and breaker.
func (s *System) RemoveProvider(name string) error {
	s.mu.Lock()
	if _, ok := s.providers[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	delete(s.providers, name)
	s.mu.Unlock()

	s.counter.Remove(name)
	s.pacer.SetInterval(name, 0)
	s.executor.Breakers().Remove(name)
	metrics.ProviderStatus.DeleteLabelValues(name)
	metrics.ProviderSuccessRate.DeleteLabelValues(name)
	slog.Info("Removed search provider", "provider", name)
	return nil
}

// Enable makes a provider eligible for selection.
func (s *System) Enable(name string) error {
	return s.setEnabled(name, true)
}

// Disable excludes a provider from selection.
func (s *System) Disable(name string) error {
	return s.setEnabled(name, false)
}

func (s *System) setEnabled(name string, enabled bool) error {
	e, err := s.entry(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg.Enabled = enabled
	e.mu.Unlock()
	slog.Info("Provider availability changed", "provider", name, "enabled", enabled)
	return nil
}

// SetPriority changes a provider's priority (lower is preferred).
func (s *System) SetPriority(name string, priority int) error {
	e, err := s.entry(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg.Priority = priority
	e.mu.Unlock()
	slog.Info("Provider priority changed", "provider", name, "priority", priority)
	return nil
}

// SetHealth overwrites a provider's health record. An empty status is derived
// from the counters.
func (s *System) SetHealth(name string, h domain.ProviderHealth) error {
	e, err := s.entry(name)
	if err != nil {
		return err
	}
	if h.Status == "" {
		h.Status = EvaluateStatus(h.SuccessRate, h.ErrorCount)
	}
	e.mu.Lock()
	e.health = h
	e.mu.Unlock()
	observeHealth(name, h)
	return nil
}

// Health returns a copy of a provider's health record.
func (s *System) Health(name string) (domain.ProviderHealth, error) {
	e, err := s.entry(name)
	if err != nil {
		return domain.ProviderHealth{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health, nil
}

// AllHealth returns every provider's health record.
func (s *System) AllHealth() map[string]domain.ProviderHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ProviderHealth, len(s.providers))
	for name, e := range s.providers {
		e.mu.RLock()
		out[name] = e.health
		e.mu.RUnlock()
	}
	return out
}

// Config returns a copy of a provider's configuration.
func (s *System) Config(name string) (domain.ProviderConfig, error) {
	e, err := s.entry(name)
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, nil
}

// Configs returns every provider's configuration ordered by priority.
func (s *System) Configs() []domain.ProviderConfig {
	s.mu.RLock()
	out := make([]domain.ProviderConfig, 0, len(s.providers))
	for _, e := range s.providers {
		e.mu.RLock()
		out = append(out, e.cfg)
		e.mu.RUnlock()
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RequestCounts returns the rate-limit counters of every provider.
func (s *System) RequestCounts() map[string]domain.RequestCount {
	return s.counter.Snapshots()
}

// Breakers returns the breaker state of every destination called so far.
func (s *System) Breakers() []routing.BreakerSnapshot {
	return s.executor.Breakers().Snapshots()
}

// ResetBreaker forces a provider's breaker closed.
func (s *System) ResetBreaker(name string) error {
	if _, err := s.entry(name); err != nil {
		return err
	}
	s.executor.Breakers().Get(name).Reset()
	slog.Info("Circuit breaker reset", "provider", name)
	return nil
}

// ProviderSnapshot returns the runtime view of one provider.
func (s *System) ProviderSnapshot(name string) (ProviderSnapshot, error) {
	e, err := s.entry(name)
	if err != nil {
		return ProviderSnapshot{}, err
	}
	e.mu.RLock()
	snap := ProviderSnapshot{Config: e.cfg, Health: e.health}
	e.mu.RUnlock()

	snap.Requests = s.counter.Snapshot(name)
	if cb, ok := s.executor.Breakers().Lookup(name); ok {
		snap.Breaker = cb.Snapshot()
	} else {
		snap.Breaker = routing.BreakerSnapshot{Key: name, State: routing.StateClosed}
	}
	return snap, nil
}

// Snapshot exports every provider's config, health, counters and breaker.
func (s *System) Snapshot() Snapshot {
	cfgs := s.Configs()
	out := Snapshot{
		Timestamp: s.clock.Now(),
		Providers: make([]ProviderSnapshot, 0, len(cfgs)),
	}
	for _, cfg := range cfgs {
		snap, err := s.ProviderSnapshot(cfg.Name)
		if err != nil {
			continue
		}
		out.Providers = append(out.Providers, snap)
	}
	return out
}
