package config

import (
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
	redisclient "github.com/vietddude/searchrelay/internal/infra/redis"
	"github.com/vietddude/searchrelay/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Search   SearchConfig       `yaml:"search"`
	Monitor  MonitorConfig      `yaml:"monitor"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SearchConfig configures the fallback provider system.
type SearchConfig struct {
	Providers           []ProviderConfig `yaml:"providers"`
	Breaker             BreakerConfig    `yaml:"breaker"`
	HealthCheckInterval time.Duration    `yaml:"health_check_interval"`
	DecayInterval       time.Duration    `yaml:"decay_interval"`
	CacheTTL            time.Duration    `yaml:"cache_ttl"` // 0 = no caching
}

// BreakerConfig holds the per-provider circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ProviderConfig holds settings for a search provider.
type ProviderConfig struct {
	Name        string          `yaml:"name"`
	Type        string          `yaml:"type"` // defaults to name
	APIKey      string          `yaml:"api_key"`
	BaseURL     string          `yaml:"base_url"`
	Priority    int             `yaml:"priority"`
	Enabled     *bool           `yaml:"enabled"` // nil = enabled
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Timeout     time.Duration   `yaml:"timeout"`
	MinInterval time.Duration   `yaml:"min_interval"`
	Retry       RetryConfig     `yaml:"retry"`
}

// RateLimitConfig caps provider usage. 0 = unlimited.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// RetryConfig controls same-provider retries.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	RetryServerErrors bool          `yaml:"retry_server_errors"`
	Jitter            bool          `yaml:"jitter"`
}

// MonitorConfig configures the service health monitor.
type MonitorConfig struct {
	Checks          []CheckConfig    `yaml:"checks"`
	Thresholds      ThresholdsConfig `yaml:"thresholds"`
	Retention       time.Duration    `yaml:"retention"`
	CleanupInterval time.Duration    `yaml:"cleanup_interval"`
	WebhookURL      string           `yaml:"webhook_url"`
}

// ThresholdsConfig overrides the status evaluation thresholds. Zero values
// keep the defaults.
type ThresholdsConfig struct {
	UnhealthyConsecutiveFailures int           `yaml:"unhealthy_consecutive_failures"`
	UnhealthyErrorRate           float64       `yaml:"unhealthy_error_rate"`
	MinUptime                    float64       `yaml:"min_uptime"`
	DegradedErrorRate            float64       `yaml:"degraded_error_rate"`
	DegradedResponseTime         time.Duration `yaml:"degraded_response_time"`
	RecentWindow                 int           `yaml:"recent_window"`
}

// CheckConfig describes one monitored service.
type CheckConfig struct {
	Name            string            `yaml:"name"`
	URL             string            `yaml:"url"`
	Method          string            `yaml:"method"`
	Headers         map[string]string `yaml:"headers"`
	Body            string            `yaml:"body"`
	Timeout         time.Duration     `yaml:"timeout"`
	Interval        time.Duration     `yaml:"interval"`
	ExpectedStatus  []int             `yaml:"expected_status"`
	ExpectedBody    string            `yaml:"expected_body"`
	ExpectedJSON    map[string]string `yaml:"expected_json"`
	ExpectedHeaders map[string]string `yaml:"expected_headers"`
}

// IsEnabled reports whether the provider takes part in searches.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Domain converts the provider section to the runtime provider config.
func (p ProviderConfig) Domain() domain.ProviderConfig {
	return domain.ProviderConfig{
		Name:     p.Name,
		Type:     p.Type,
		APIKey:   p.APIKey,
		BaseURL:  p.BaseURL,
		Priority: p.Priority,
		Enabled:  p.IsEnabled(),
		RateLimit: domain.RateLimit{
			PerMinute: p.RateLimit.PerMinute,
			PerDay:    p.RateLimit.PerDay,
		},
		Timeout:     p.Timeout,
		MinInterval: p.MinInterval,
		Retry: domain.RetryPolicy{
			MaxRetries:        p.Retry.MaxRetries,
			BaseDelay:         p.Retry.BaseDelay,
			MaxDelay:          p.Retry.MaxDelay,
			RetryServerErrors: p.Retry.RetryServerErrors,
			Jitter:            p.Retry.Jitter,
		},
	}
}

// Domain converts the check section to a health check definition.
func (c CheckConfig) Domain() domain.HealthCheck {
	return domain.HealthCheck{
		Name:            c.Name,
		URL:             c.URL,
		Method:          c.Method,
		Headers:         c.Headers,
		Body:            c.Body,
		Timeout:         c.Timeout,
		Interval:        c.Interval,
		ExpectedStatus:  c.ExpectedStatus,
		ExpectedBody:    c.ExpectedBody,
		ExpectedJSON:    c.ExpectedJSON,
		ExpectedHeaders: c.ExpectedHeaders,
	}
}

// ProviderConfigs returns the runtime configs of all configured providers.
func (s SearchConfig) ProviderConfigs() []domain.ProviderConfig {
	out := make([]domain.ProviderConfig, 0, len(s.Providers))
	for _, p := range s.Providers {
		out = append(out, p.Domain())
	}
	return out
}

// HealthChecks returns the runtime definitions of all monitored services.
func (m MonitorConfig) HealthChecks() []domain.HealthCheck {
	out := make([]domain.HealthCheck, 0, len(m.Checks))
	for _, c := range m.Checks {
		out = append(out, c.Domain())
	}
	return out
}
