// Package search implements the fallback provider system: it ranks the
// registered search providers by health and priority, runs each attempt
// through the retrying executor and returns the first normalized response.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/searchrelay/internal/core/clock"
	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/core/worker"
	"github.com/vietddude/searchrelay/internal/infra/search/budget"
	"github.com/vietddude/searchrelay/internal/infra/search/provider"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
	"github.com/vietddude/searchrelay/internal/monitoring/metrics"
)

const (
	defaultTimeout             = 10 * time.Second
	defaultHealthCheckInterval = 5 * time.Minute
	defaultDecayInterval       = time.Hour
	maxResultsCount            = 100
	auditTimeout               = 2 * time.Second
)

// Cache stores normalized responses keyed by an options digest.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.SearchResponse, bool, error)
	Set(ctx context.Context, key string, resp *domain.SearchResponse, ttl time.Duration) error
}

// Recorder persists the search audit trail.
type Recorder interface {
	Add(ctx context.Context, rec *domain.SearchRecord) error
}

// Config is the static configuration of the system.
type Config struct {
	Providers           []domain.ProviderConfig
	Breaker             routing.BreakerConfig
	HealthCheckInterval time.Duration
	DecayInterval       time.Duration
	CacheTTL            time.Duration
}

// Deps are the collaborators of the system. Only Fetcher is required.
type Deps struct {
	Fetcher  provider.Fetcher
	Registry provider.Registry
	Clock    clock.Clock
	Cache    Cache
	Recorder Recorder
}

type providerEntry struct {
	mu      sync.RWMutex
	cfg     domain.ProviderConfig
	health  domain.ProviderHealth
	adapter provider.Adapter
}

type candidate struct {
	cfg     domain.ProviderConfig
	status  domain.ProviderStatus
	adapter provider.Adapter
}

// System is the fallback provider orchestrator.
type System struct {
	mu        sync.RWMutex
	providers map[string]*providerEntry

	cfg      Config
	fetcher  provider.Fetcher
	registry provider.Registry
	clock    clock.Clock
	executor *routing.Executor
	counter  *budget.Counter
	pacer    *budget.Pacer
	cache    Cache
	recorder Recorder

	healthTask *worker.Task
	decayTask  *worker.Task
}

// NewSystem creates the orchestrator and registers cfg.Providers.
func NewSystem(cfg Config, deps Deps) (*System, error) {
	if deps.Fetcher == nil {
		deps.Fetcher = provider.NewRestyFetcher("")
	}
	if deps.Registry == nil {
		deps.Registry = provider.DefaultRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}
	if cfg.DecayInterval <= 0 {
		cfg.DecayInterval = defaultDecayInterval
	}

	breakerCfg := cfg.Breaker
	hook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(key string, from, to routing.State) {
		observeBreaker(key, to)
		if to == routing.StateOpen {
			slog.Warn("Circuit breaker opened", "provider", key, "from", from)
		} else {
			slog.Info("Circuit breaker state changed", "provider", key, "from", from, "to", to)
		}
		if hook != nil {
			hook(key, from, to)
		}
	}

	s := &System{
		providers: make(map[string]*providerEntry),
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		registry:  deps.Registry,
		clock:     deps.Clock,
		executor:  routing.NewExecutor(breakerCfg, deps.Clock),
		counter:   budget.NewCounter(deps.Clock),
		pacer:     budget.NewPacer(),
		cache:     deps.Cache,
		recorder:  deps.Recorder,
	}
	s.healthTask = worker.NewTask("provider-health-check", cfg.HealthCheckInterval, s.RunHealthChecks)
	s.decayTask = worker.NewTask("provider-health-decay", cfg.DecayInterval, func(context.Context) {
		s.DecayHealth()
	})

	for _, p := range cfg.Providers {
		if err := s.AddProvider(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the periodic health check and decay tasks.
func (s *System) Start(ctx context.Context) {
	s.healthTask.Start(ctx)
	s.decayTask.Start(ctx)
	slog.Info("Search system started",
		"providers", len(s.Configs()),
		"health_check_interval", s.cfg.HealthCheckInterval,
		"decay_interval", s.cfg.DecayInterval,
	)
}

// Stop halts background tasks. In-flight searches are unaffected.
func (s *System) Stop() {
	s.healthTask.Stop()
	s.decayTask.Stop()
}

// Search returns the first successful normalized response, trying providers
// in health-then-priority order.
func (s *System) Search(ctx context.Context, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	start := s.clock.Now()
	rec := &domain.SearchRecord{
		ID:        uuid.NewString(),
		Query:     opts.Query,
		CreatedAt: start,
	}

	key := CacheKey(opts)
	if resp, ok := s.fromCache(ctx, key); ok {
		rec.Provider, rec.Success, rec.Cached = resp.Provider, true, true
		s.finish(ctx, rec, "cached")
		return resp, nil
	}

	candidates := s.candidates()

	var lastErr error
	for _, c := range candidates {
		name := c.cfg.Name
		if !s.counter.Allow(name) {
			slog.Debug("Skipping rate-limited provider", "provider", name)
			if lastErr == nil {
				lastErr = fmt.Errorf("provider %s: local rate limit reached", name)
			}
			continue
		}

		rec.Attempted = append(rec.Attempted, name)
		resp, err := s.attempt(ctx, c, opts)
		if err == nil {
			if opts.ResultsCount > 0 && len(resp.Results) > opts.ResultsCount {
				resp.Results = resp.Results[:opts.ResultsCount]
			}
			resp.Provider = name
			resp.SearchTime = s.clock.Now().Sub(start)
			s.toCache(ctx, key, resp)

			rec.Provider, rec.Success = name, true
			rec.Duration = resp.SearchTime
			s.finish(ctx, rec, "served")
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = ErrNoProviders
	}
	aggErr := &AllProvidersError{Attempted: rec.Attempted, Last: lastErr}
	rec.Duration = s.clock.Now().Sub(start)
	rec.Error = lastErr.Error()
	s.finish(ctx, rec, "failed")
	slog.Warn("Search failed on every provider", "query", opts.Query, "attempted", rec.Attempted, "error", lastErr)
	return nil, aggErr
}

// attempt runs one provider through the executor and applies the outcome to
// its health record.
func (s *System) attempt(ctx context.Context, c candidate, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	name := c.cfg.Name
	work := func(ctx context.Context) (any, error) {
		if err := s.pacer.Wait(ctx, name); err != nil {
			return nil, err
		}
		req, err := c.adapter.BuildRequest(c.cfg, opts)
		if err != nil {
			return nil, err
		}
		raw, err := s.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return c.adapter.ParseResponse(opts.Query, raw.Body)
	}

	began := s.clock.Now()
	out, err := s.executor.Execute(ctx, name, work, routing.Options{
		MaxRetries:        c.cfg.Retry.MaxRetries,
		BaseDelay:         c.cfg.Retry.BaseDelay,
		MaxDelay:          c.cfg.Retry.MaxDelay,
		RetryServerErrors: c.cfg.Retry.RetryServerErrors,
		Jitter:            c.cfg.Retry.Jitter,
		Timeout:           c.cfg.Timeout,
	})
	now := s.clock.Now()
	elapsed := now.Sub(began)
	metrics.ProviderLatency.WithLabelValues(name).Observe(elapsed.Seconds())

	if err == nil {
		resp, ok := out.(*domain.SearchResponse)
		if !ok || resp == nil {
			err = &routing.ValidationError{Field: "response", Message: "invalid response format from " + name}
		} else {
			s.updateHealth(name, func(h *domain.ProviderHealth) { applySuccess(h, now, elapsed) })
			s.counter.Record(name)
			metrics.ProviderAttemptsTotal.WithLabelValues(name, "success").Inc()
			if count, ok := s.counter.Lookup(name); ok {
				metrics.ProviderRequests.WithLabelValues(name).Set(float64(count.Day))
			}
			return resp, nil
		}
	}

	switch {
	case routing.IsCircuitOpen(err):
		metrics.ProviderAttemptsTotal.WithLabelValues(name, "circuit_open").Inc()
		slog.Debug("Provider circuit open, skipping", "provider", name, "error", err)
	case ctx.Err() != nil:
		metrics.ProviderAttemptsTotal.WithLabelValues(name, "cancelled").Inc()
	default:
		errType := routing.ErrorUnknown
		if apiErr, ok := routing.AsAPIError(err); ok {
			errType = apiErr.Type
		}
		s.updateHealth(name, func(h *domain.ProviderHealth) { applyFailure(h, now, elapsed, err) })
		metrics.ProviderAttemptsTotal.WithLabelValues(name, "failure").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(name, string(errType)).Inc()
		slog.Warn("Provider attempt failed", "provider", name, "error_type", errType, "error", err)
	}
	return nil, err
}

// candidates snapshots the eligible providers in attempt order.
func (s *System) candidates() []candidate {
	s.mu.RLock()
	out := make([]candidate, 0, len(s.providers))
	for _, e := range s.providers {
		e.mu.RLock()
		if e.cfg.Enabled && e.health.Status != domain.ProviderUnhealthy {
			out = append(out, candidate{cfg: e.cfg, status: e.health.Status, adapter: e.adapter})
		}
		e.mu.RUnlock()
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].status.Rank(), out[j].status.Rank()
		if ri != rj {
			return ri < rj
		}
		if out[i].cfg.Priority != out[j].cfg.Priority {
			return out[i].cfg.Priority < out[j].cfg.Priority
		}
		return out[i].cfg.Name < out[j].cfg.Name
	})
	return out
}

func (s *System) entry(name string) (*providerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return e, nil
}

func (s *System) updateHealth(name string, fn func(h *domain.ProviderHealth)) {
	e, err := s.entry(name)
	if err != nil {
		return // removed mid-search
	}
	e.mu.Lock()
	fn(&e.health)
	h := e.health
	e.mu.Unlock()

	observeHealth(name, h)
}

func (s *System) fromCache(ctx context.Context, key string) (*domain.SearchResponse, bool) {
	if s.cache == nil {
		return nil, false
	}
	resp, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Response cache read failed", "error", err)
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	resp.Cached = true
	return resp, true
}

func (s *System) toCache(ctx context.Context, key string, resp *domain.SearchResponse) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL); err != nil {
		slog.Warn("Response cache write failed", "error", err)
	}
}

func (s *System) finish(ctx context.Context, rec *domain.SearchRecord, outcome string) {
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	metrics.SearchLatency.Observe(rec.Duration.Seconds())

	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.recorder.Add(ctx, rec); err != nil {
		slog.Warn("Failed to record search", "id", rec.ID, "error", err)
	}
}

func normalizeOptions(opts domain.SearchOptions) (domain.SearchOptions, error) {
	opts.Query = strings.TrimSpace(opts.Query)
	if opts.Query == "" {
		return opts, &routing.ValidationError{Field: "query", Message: "query is required"}
	}
	if opts.ResultsCount < 0 || opts.ResultsCount > maxResultsCount {
		return opts, &routing.ValidationError{
			Field:   "results_count",
			Message: fmt.Sprintf("must be between 0 and %d", maxResultsCount),
		}
	}
	switch opts.Device {
	case "", domain.DeviceDesktop, domain.DeviceMobile:
	default:
		return opts, &routing.ValidationError{Field: "device", Message: fmt.Sprintf("unsupported device %q", opts.Device)}
	}
	return opts, nil
}

// CacheKey is a stable digest of the search options. Fields are joined with
// a unit separator so adjacent values cannot run together.
func CacheKey(opts domain.SearchOptions) string {
	key := strings.Join([]string{
		opts.Query,
		opts.Location,
		opts.Language,
		opts.Country,
		string(opts.Device),
		strconv.Itoa(opts.ResultsCount),
		strconv.FormatBool(opts.SafeSearch),
	}, "\x1f")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

func observeHealth(name string, h domain.ProviderHealth) {
	metrics.ProviderSuccessRate.WithLabelValues(name).Set(h.SuccessRate)
	metrics.ProviderStatus.WithLabelValues(name).Set(float64(h.Status.Rank()))
}

func observeBreaker(key string, state routing.State) {
	var v float64
	switch state {
	case routing.StateHalfOpen:
		v = 1
	case routing.StateOpen:
		v = 2
		metrics.CircuitBreakerTrips.WithLabelValues(key).Inc()
	}
	metrics.CircuitBreakerState.WithLabelValues(key).Set(v)
}
