package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes the process-level overrides, e.g. SEARCHRELAY_PORT.
const EnvPrefix = "searchrelay"

// envOverrides are applied on top of the YAML file.
type envOverrides struct {
	LogLevel    string `envconfig:"LOG_LEVEL"`
	Port        int    `envconfig:"PORT"`
	RedisURL    string `envconfig:"REDIS_URL"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// Load reads configuration from a YAML file. An empty path yields the
// defaults plus environment overrides.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.UnmarshalStrict([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.DatabaseURL != "" {
		cfg.Database.URL = env.DatabaseURL
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	s := &cfg.Search
	if s.Breaker.FailureThreshold == 0 {
		s.Breaker.FailureThreshold = 5
	}
	if s.Breaker.Cooldown == 0 {
		s.Breaker.Cooldown = 60 * time.Second
	}
	if s.HealthCheckInterval == 0 {
		s.HealthCheckInterval = 5 * time.Minute
	}
	if s.DecayInterval == 0 {
		s.DecayInterval = time.Hour
	}
	for i := range s.Providers {
		if s.Providers[i].Timeout == 0 {
			s.Providers[i].Timeout = 10 * time.Second
		}
	}

	if cfg.Monitor.Retention == 0 {
		cfg.Monitor.Retention = 24 * time.Hour
	}
	if cfg.Monitor.CleanupInterval == 0 {
		cfg.Monitor.CleanupInterval = time.Hour
	}
	if cfg.Database.Retention == 0 {
		cfg.Database.Retention = 30 * 24 * time.Hour
	}
}

// Validate checks the configuration for values the runtime cannot use.
func (c *AppConfig) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}

	seen := make(map[string]bool, len(c.Search.Providers))
	for i, p := range c.Search.Providers {
		if p.Name == "" {
			return fmt.Errorf("search.providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("search.providers[%d]: duplicate provider %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.RateLimit.PerMinute < 0 || p.RateLimit.PerDay < 0 {
			return fmt.Errorf("provider %s: rate limits must not be negative", p.Name)
		}
		if p.Retry.MaxRetries < 0 {
			return fmt.Errorf("provider %s: retry.max_retries must not be negative", p.Name)
		}
	}

	checks := make(map[string]bool, len(c.Monitor.Checks))
	for i, ch := range c.Monitor.Checks {
		if ch.Name == "" || ch.URL == "" {
			return fmt.Errorf("monitor.checks[%d]: name and url are required", i)
		}
		if checks[ch.Name] {
			return fmt.Errorf("monitor.checks[%d]: duplicate service %q", i, ch.Name)
		}
		checks[ch.Name] = true
	}
	return nil
}
