package domain

import "time"

// ServiceStatus is the monitor's view of an external service.
type ServiceStatus string

const (
	ServiceUnknown   ServiceStatus = "unknown"
	ServiceHealthy   ServiceStatus = "healthy"
	ServiceDegraded  ServiceStatus = "degraded"
	ServiceUnhealthy ServiceStatus = "unhealthy"
)

// HealthCheck describes how to probe one service.
type HealthCheck struct {
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	Timeout         time.Duration     `json:"timeout"`
	Interval        time.Duration     `json:"interval"`
	ExpectedStatus  []int             `json:"expected_status,omitempty"`
	ExpectedBody    string            `json:"expected_body,omitempty"`
	ExpectedJSON    map[string]string `json:"expected_json,omitempty"`
	ExpectedHeaders map[string]string `json:"expected_headers,omitempty"`
}

// HealthMetrics is one probe sample.
type HealthMetrics struct {
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Success      bool          `json:"success"`
	StatusCode   int           `json:"status_code,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// HealthStatus is the aggregate state of one service over its retained samples.
type HealthStatus struct {
	Service             string        `json:"service"`
	Status              ServiceStatus `json:"status"`
	LastCheck           time.Time     `json:"last_check"`
	Uptime              float64       `json:"uptime"`
	ErrorRate           float64       `json:"error_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	TotalChecks         int           `json:"total_checks"`
	LastError           string        `json:"last_error,omitempty"`
}

// SystemHealth summarizes every monitored service.
type SystemHealth struct {
	Status    ServiceStatus `json:"status"`
	Total     int           `json:"total"`
	Healthy   int           `json:"healthy"`
	Degraded  int           `json:"degraded"`
	Unhealthy int           `json:"unhealthy"`
	Unknown   int           `json:"unknown"`
	Timestamp time.Time     `json:"timestamp"`
}
