package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/searchrelay/internal/core/clock"
	"github.com/vietddude/searchrelay/internal/core/config"
	"github.com/vietddude/searchrelay/internal/core/worker"
	redisclient "github.com/vietddude/searchrelay/internal/infra/redis"
	"github.com/vietddude/searchrelay/internal/infra/search"
	"github.com/vietddude/searchrelay/internal/infra/search/provider"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
	"github.com/vietddude/searchrelay/internal/infra/storage"
	"github.com/vietddude/searchrelay/internal/infra/storage/memory"
	"github.com/vietddude/searchrelay/internal/infra/storage/postgres"
	"github.com/vietddude/searchrelay/internal/monitoring/health"
	"github.com/vietddude/searchrelay/internal/monitoring/metrics"
)

const (
	userAgent            = "searchrelay/1.0"
	metricsInterval      = 10 * time.Second
	cacheCleanupInterval = 10 * time.Minute
)

// Relay is the main application struct that wires the search system, the
// health monitor, storage and the introspection server.
type Relay struct {
	cfg      Config
	system   *search.System
	monitor  *health.Monitor
	server   *health.Server
	searches storage.SearchRepository
	alerts   storage.AlertRepository
	pruner   *worker.Pruner
	metrics  *worker.Task
	db       *postgres.DB
	redis    *redisclient.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds the application configuration.
type Config struct {
	Port     int
	Search   config.SearchConfig
	Monitor  config.MonitorConfig
	Redis    redisclient.Config
	Database postgres.Config

	// Optional overrides, mainly for tests.
	Fetcher provider.Fetcher
	Prober  health.Prober
	Clock   clock.Clock
}

// ConfigFrom maps the loaded file configuration onto the relay config.
func ConfigFrom(cfg *config.AppConfig) Config {
	return Config{
		Port:     cfg.Server.Port,
		Search:   cfg.Search,
		Monitor:  cfg.Monitor,
		Redis:    cfg.Redis,
		Database: cfg.Database,
	}
}

// NewRelay creates a new Relay with all dependencies initialized.
func NewRelay(ctx context.Context, cfg Config) (*Relay, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = provider.NewRestyFetcher(userAgent)
	}
	r := &Relay{cfg: cfg}

	// 1. Initialize Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		r.db = db
		r.searches = postgres.NewSearchRepo(db)
		r.alerts = postgres.NewAlertRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		r.searches = memory.NewSearchRepo(store)
		r.alerts = memory.NewAlertRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Response Cache
	var cache search.Cache
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, using in-memory cache", "error", err)
		} else {
			r.redis = client
			cache = redisclient.NewResponseCache(client)
		}
	}
	if cache == nil {
		cache = memory.NewResponseCache(cacheCleanupInterval)
	}

	// 3. Initialize Search System
	system, err := search.NewSystem(search.Config{
		Providers: cfg.Search.ProviderConfigs(),
		Breaker: routing.BreakerConfig{
			FailureThreshold: cfg.Search.Breaker.FailureThreshold,
			Cooldown:         cfg.Search.Breaker.Cooldown,
		},
		HealthCheckInterval: cfg.Search.HealthCheckInterval,
		DecayInterval:       cfg.Search.DecayInterval,
		CacheTTL:            cfg.Search.CacheTTL,
	}, search.Deps{
		Fetcher:  cfg.Fetcher,
		Clock:    cfg.Clock,
		Cache:    cache,
		Recorder: r.searches,
	})
	if err != nil {
		r.close()
		return nil, fmt.Errorf("failed to init search system: %w", err)
	}
	r.system = system

	// 4. Initialize Health Monitor
	t := cfg.Monitor.Thresholds
	monitor, err := health.NewMonitor(health.Config{
		Checks: cfg.Monitor.HealthChecks(),
		Thresholds: health.Thresholds{
			UnhealthyConsecutiveFailures: t.UnhealthyConsecutiveFailures,
			UnhealthyErrorRate:           t.UnhealthyErrorRate,
			MinUptime:                    t.MinUptime,
			DegradedErrorRate:            t.DegradedErrorRate,
			DegradedResponseTime:         t.DegradedResponseTime,
			RecentWindow:                 t.RecentWindow,
		},
		Retention:       cfg.Monitor.Retention,
		CleanupInterval: cfg.Monitor.CleanupInterval,
	}, cfg.Prober, cfg.Clock)
	if err != nil {
		r.close()
		return nil, fmt.Errorf("failed to init health monitor: %w", err)
	}
	monitor.AddSink(health.LogSink{})
	monitor.AddSink(health.NewStoreSink(r.alerts))
	if cfg.Monitor.WebhookURL != "" {
		monitor.AddSink(health.NewWebhookSink(cfg.Monitor.WebhookURL))
	}
	if r.redis != nil {
		monitor.AddSink(redisclient.NewAlertPublisher(r.redis))
	}
	r.monitor = monitor

	r.server = health.NewServer(monitor, system, cfg.Port)

	// 5. Initialize Pruner
	if cfg.Database.Retention > 0 {
		r.pruner = worker.NewPruner(cfg.Database.Retention, map[string]worker.Prunable{
			"searches": r.searches,
			"alerts":   r.alerts,
		})
	}

	r.metrics = worker.NewTask("provider-metrics", metricsInterval, func(context.Context) {
		r.updateMetrics()
	})

	return r, nil
}

// Start starts the relay and all its components.
func (r *Relay) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	// Start Health Server
	if r.cfg.Port > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Health server failed", "error", err)
			}
		}()
	}

	r.system.Start(ctx)
	r.monitor.Start(ctx)
	r.metrics.Start(ctx)

	// Start DB Metrics Collector
	if r.db != nil {
		r.db.StartMetricsCollector(ctx)
	}

	// Start Pruner
	if r.pruner != nil {
		slog.Info("Starting pruner", "retention", r.cfg.Database.Retention)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.pruner.Start(ctx)
		}()
	}

	slog.Info("Relay started", "port", r.cfg.Port, "providers", len(r.system.Configs()))
	return nil
}

// Stop stops the relay.
func (r *Relay) Stop(ctx context.Context) error {
	slog.Info("Stopping Relay...")

	var err error
	if r.cfg.Port > 0 {
		err = r.server.Stop(ctx)
	}

	r.monitor.Stop()
	r.system.Stop()
	r.metrics.Stop()
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	r.close()
	return err
}

func (r *Relay) close() {
	// Close Redis
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			slog.Warn("Failed to close Redis", "error", err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}

// System returns the fallback provider system.
func (r *Relay) System() *search.System { return r.system }

// Monitor returns the service health monitor.
func (r *Relay) Monitor() *health.Monitor { return r.monitor }

// Searches returns the search audit repository.
func (r *Relay) Searches() storage.SearchRepository { return r.searches }

// Alerts returns the alert history repository.
func (r *Relay) Alerts() storage.AlertRepository { return r.alerts }

// Handler returns the introspection HTTP handler.
func (r *Relay) Handler() http.Handler { return r.server.Handler() }

func (r *Relay) updateMetrics() {
	for name, c := range r.system.RequestCounts() {
		metrics.ProviderRequests.WithLabelValues(name).Set(float64(c.Day))
	}
	healthy, degraded, unhealthy := r.system.Summary()
	slog.Debug("Updating provider metrics", "healthy", healthy, "degraded", degraded, "unhealthy", unhealthy)
}
