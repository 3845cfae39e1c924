package domain

import "time"

// ProviderStatus is the derived health classification of a search provider.
type ProviderStatus string

const (
	ProviderHealthy   ProviderStatus = "healthy"
	ProviderDegraded  ProviderStatus = "degraded"
	ProviderUnhealthy ProviderStatus = "unhealthy"
)

// Rank orders statuses for candidate selection: healthy first.
func (s ProviderStatus) Rank() int {
	switch s {
	case ProviderHealthy:
		return 0
	case ProviderDegraded:
		return 1
	default:
		return 2
	}
}

// RateLimit caps requests per fixed window. Zero means unlimited.
type RateLimit struct {
	PerMinute int `json:"per_minute"`
	PerDay    int `json:"per_day"`
}

// RetryPolicy controls how the executor retries a single provider.
type RetryPolicy struct {
	MaxRetries        int           `json:"max_retries"`
	BaseDelay         time.Duration `json:"base_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	RetryServerErrors bool          `json:"retry_server_errors"`
	Jitter            bool          `json:"jitter"`
}

// ProviderConfig is the static configuration of one search provider.
// Type selects the adapter; it defaults to Name.
type ProviderConfig struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	APIKey      string        `json:"-"`
	BaseURL     string        `json:"base_url,omitempty"`
	Priority    int           `json:"priority"`
	Enabled     bool          `json:"enabled"`
	RateLimit   RateLimit     `json:"rate_limit"`
	Timeout     time.Duration `json:"timeout"`
	MinInterval time.Duration `json:"min_interval,omitempty"`
	Retry       RetryPolicy   `json:"retry"`
}

// AdapterType returns the adapter key for this provider.
func (c ProviderConfig) AdapterType() string {
	if c.Type != "" {
		return c.Type
	}
	return c.Name
}

// ProviderHealth is the mutable health record of one provider.
type ProviderHealth struct {
	Status       ProviderStatus `json:"status"`
	LastCheck    time.Time      `json:"last_check"`
	ResponseTime time.Duration  `json:"response_time"`
	SuccessRate  float64        `json:"success_rate"`
	ErrorCount   int            `json:"error_count"`
	LastError    string         `json:"last_error,omitempty"`
}

// NewProviderHealth returns the initial record for a freshly registered provider.
func NewProviderHealth() ProviderHealth {
	return ProviderHealth{
		Status:      ProviderHealthy,
		SuccessRate: 100,
	}
}

// RequestCount tracks fixed-window usage for one provider.
type RequestCount struct {
	Minute      int       `json:"minute"`
	Day         int       `json:"day"`
	MinuteStart time.Time `json:"minute_start"`
	DayStart    time.Time `json:"day_start"`
	LastReset   time.Time `json:"last_reset"`
}
