package search

import (
	"context"
	"log/slog"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/search/provider"
)

// RunHealthChecks sends one low-cost probe to every enabled provider,
// including unhealthy ones, and applies the outcome like a real search.
// Errors are logged only.
func (s *System) RunHealthChecks(ctx context.Context) {
	for _, cfg := range s.Configs() {
		if ctx.Err() != nil {
			return
		}
		if !cfg.Enabled {
			continue
		}
		if !s.counter.Allow(cfg.Name) {
			slog.Debug("Skipping health probe, rate limit reached", "provider", cfg.Name)
			continue
		}

		e, err := s.entry(cfg.Name)
		if err != nil {
			continue
		}
		e.mu.RLock()
		c := candidate{cfg: e.cfg, status: e.health.Status, adapter: e.adapter}
		e.mu.RUnlock()

		if _, err := s.attempt(ctx, c, provider.ProbeOptions()); err != nil {
			slog.Debug("Provider health probe failed", "provider", cfg.Name, "error", err)
			continue
		}
		slog.Debug("Provider health probe succeeded", "provider", cfg.Name)
	}
}

// DecayHealth nudges every provider back toward healthy.
func (s *System) DecayHealth() {
	s.mu.RLock()
	entries := make(map[string]*providerEntry, len(s.providers))
	for name, e := range s.providers {
		entries[name] = e
	}
	s.mu.RUnlock()

	for name, e := range entries {
		e.mu.Lock()
		before := e.health.Status
		applyDecay(&e.health)
		h := e.health
		e.mu.Unlock()

		observeHealth(name, h)
		if before != h.Status {
			slog.Info("Provider health recovered by decay", "provider", name, "from", before, "to", h.Status)
		}
	}
}

// statusCounts summarizes provider statuses for aggregate health.
func statusCounts(all map[string]domain.ProviderHealth) (healthy, degraded, unhealthy int) {
	for _, h := range all {
		switch h.Status {
		case domain.ProviderHealthy:
			healthy++
		case domain.ProviderDegraded:
			degraded++
		default:
			unhealthy++
		}
	}
	return
}

// Summary returns the number of providers in each status.
func (s *System) Summary() (healthy, degraded, unhealthy int) {
	return statusCounts(s.AllHealth())
}
