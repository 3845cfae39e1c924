package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal tracks searches by outcome (served, cached, failed, rejected)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_searches_total",
			Help: "Total number of search requests",
		},
		[]string{"outcome"},
	)

	// SearchLatency tracks end-to-end search latency including fallbacks
	SearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchrelay_search_latency_seconds",
			Help:    "End-to-end search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ProviderAttemptsTotal tracks provider attempts
	ProviderAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_provider_attempts_total",
			Help: "Total number of provider attempts",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderErrorsTotal tracks provider errors by classified type
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_provider_errors_total",
			Help: "Total number of provider errors",
		},
		[]string{"provider", "error_type"},
	)

	// ProviderLatency tracks provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchrelay_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// ProviderSuccessRate tracks the rolling success rate (0-100)
	ProviderSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchrelay_provider_success_rate",
			Help: "Provider success rate score (0-100)",
		},
		[]string{"provider"},
	)

	// ProviderStatus tracks provider health (0=healthy, 1=degraded, 2=unhealthy)
	ProviderStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchrelay_provider_status",
			Help: "Provider health status (0=healthy, 1=degraded, 2=unhealthy)",
		},
		[]string{"provider"},
	)

	// ProviderRequests tracks requests in the current day window
	ProviderRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchrelay_provider_requests_today",
			Help: "Requests counted against the provider's daily limit",
		},
		[]string{"provider"},
	)

	// CircuitBreakerState tracks breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchrelay_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"destination"},
	)

	// CircuitBreakerTrips tracks how often a breaker opened
	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker openings",
		},
		[]string{"destination"},
	)

	// CacheLookups tracks response cache hits and misses
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_cache_lookups_total",
			Help: "Response cache lookups",
		},
		[]string{"result"},
	)

	// ServiceProbeLatency tracks health probe latency
	ServiceProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchrelay_service_probe_latency_seconds",
			Help:    "Health probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// ServiceStatus tracks monitored service status (0=healthy, 1=degraded, 2=unhealthy, 3=unknown)
	ServiceStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchrelay_service_status",
			Help: "Monitored service status (0=healthy, 1=degraded, 2=unhealthy, 3=unknown)",
		},
		[]string{"service"},
	)

	// ServiceUptime tracks uptime percentage over retained samples
	ServiceUptime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchrelay_service_uptime_percent",
			Help: "Service uptime percentage over retained samples",
		},
		[]string{"service"},
	)

	// AlertsTotal tracks alerts raised
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"service", "type"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchrelay_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// AuditRowsPruned tracks audit rows removed by the retention pruner
	AuditRowsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchrelay_audit_rows_pruned_total",
			Help: "Total number of audit rows deleted by retention",
		},
		[]string{"table"},
	)
)
