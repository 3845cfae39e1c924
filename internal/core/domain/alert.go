package domain

import "time"

type AlertType string

const (
	AlertServiceDown      AlertType = "service_down"
	AlertServiceDegraded  AlertType = "service_degraded"
	AlertServiceRecovered AlertType = "service_recovered"
)

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is raised when a monitored service changes status.
type Alert struct {
	ID        string        `json:"id" db:"id"`
	Service   string        `json:"service" db:"service"`
	Type      AlertType     `json:"type" db:"type"`
	Severity  AlertSeverity `json:"severity" db:"severity"`
	Status    ServiceStatus `json:"status" db:"status"`
	Previous  ServiceStatus `json:"previous" db:"previous_status"`
	Message   string        `json:"message" db:"message"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
