package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// AlertSink delivers alerts to an external channel.
type AlertSink interface {
	Send(ctx context.Context, alert domain.Alert) error
}

// AlertStore persists alerts.
type AlertStore interface {
	Add(ctx context.Context, alert *domain.Alert) error
}

// Listener is notified of every alert in-process.
type Listener func(alert domain.Alert)

// alertFor returns the alert raised by a status transition, if any.
// Staying in a state never alerts, and unhealthy to degraded is not news.
func alertFor(service string, prev, next domain.ServiceStatus, st domain.HealthStatus) (domain.AlertType, domain.AlertSeverity, string, bool) {
	if prev == next {
		return "", "", "", false
	}
	switch next {
	case domain.ServiceUnhealthy:
		return domain.AlertServiceDown, domain.AlertSeverityCritical,
			fmt.Sprintf("%s is unhealthy: %d consecutive failures, error rate %.1f%%, last error: %s",
				service, st.ConsecutiveFailures, st.ErrorRate, st.LastError), true
	case domain.ServiceDegraded:
		if prev == domain.ServiceUnhealthy {
			return "", "", "", false
		}
		return domain.AlertServiceDegraded, domain.AlertSeverityWarning,
			fmt.Sprintf("%s is degraded: error rate %.1f%%, average response %s",
				service, st.ErrorRate, st.AverageResponseTime.Round(time.Millisecond)), true
	case domain.ServiceHealthy:
		if prev == domain.ServiceUnknown {
			return "", "", "", false
		}
		return domain.AlertServiceRecovered, domain.AlertSeverityInfo,
			fmt.Sprintf("%s recovered (was %s)", service, prev), true
	}
	return "", "", "", false
}

// alertRank orders open alerts by severity. Only a recovery closes one, so a
// service that flaps between degraded and unhealthy alerts once per level.
func alertRank(t domain.AlertType) int {
	switch t {
	case domain.AlertServiceDown:
		return 2
	case domain.AlertServiceDegraded:
		return 1
	}
	return 0
}

// LogSink writes alerts to the default logger.
type LogSink struct{}

func (LogSink) Send(_ context.Context, a domain.Alert) error {
	attrs := []any{"service", a.Service, "type", a.Type, "status", a.Status, "message", a.Message}
	switch a.Severity {
	case domain.AlertSeverityCritical:
		slog.Error("Health alert", attrs...)
	case domain.AlertSeverityWarning:
		slog.Warn("Health alert", attrs...)
	default:
		slog.Info("Health alert", attrs...)
	}
	return nil
}

// WebhookSink POSTs alerts as JSON to a URL.
type WebhookSink struct {
	url    string
	client *resty.Client
}

// NewWebhookSink creates a webhook sink with a 10s timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

func (s *WebhookSink) Send(ctx context.Context, a domain.Alert) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(a).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}
	return nil
}

// StoreSink records alerts in a repository.
type StoreSink struct {
	store AlertStore
}

// NewStoreSink wraps an alert repository.
func NewStoreSink(store AlertStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Send(ctx context.Context, a domain.Alert) error {
	return s.store.Add(ctx, &a)
}
