// Package health monitors external services with scheduled HTTP probes and
// serves the introspection API.
//
// This package contains:
//   - Monitor: per-service probe loops, rolling status and alerting
//   - HTTPProber: probe execution and response validation
//   - Alert sinks: log, webhook and repository delivery
//   - Server: chi-based introspection endpoints and Prometheus metrics
package health

import (
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// Thresholds decide how samples map to a service status.
type Thresholds struct {
	UnhealthyConsecutiveFailures int           `json:"unhealthy_consecutive_failures"`
	UnhealthyErrorRate           float64       `json:"unhealthy_error_rate"`
	MinUptime                    float64       `json:"min_uptime"`
	DegradedErrorRate            float64       `json:"degraded_error_rate"`
	DegradedResponseTime         time.Duration `json:"degraded_response_time"`
	RecentWindow                 int           `json:"recent_window"`
}

// DefaultThresholds: unhealthy at 3 consecutive failures, 50% errors or
// uptime under 95%; degraded on a failure in the last 5 samples, average
// response over 2s or more than 10% errors.
func DefaultThresholds() Thresholds {
	return Thresholds{
		UnhealthyConsecutiveFailures: 3,
		UnhealthyErrorRate:           50,
		MinUptime:                    95,
		DegradedErrorRate:            10,
		DegradedResponseTime:         2 * time.Second,
		RecentWindow:                 5,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.UnhealthyConsecutiveFailures <= 0 {
		t.UnhealthyConsecutiveFailures = d.UnhealthyConsecutiveFailures
	}
	if t.UnhealthyErrorRate <= 0 {
		t.UnhealthyErrorRate = d.UnhealthyErrorRate
	}
	if t.MinUptime <= 0 {
		t.MinUptime = d.MinUptime
	}
	if t.DegradedErrorRate <= 0 {
		t.DegradedErrorRate = d.DegradedErrorRate
	}
	if t.DegradedResponseTime <= 0 {
		t.DegradedResponseTime = d.DegradedResponseTime
	}
	if t.RecentWindow <= 0 {
		t.RecentWindow = d.RecentWindow
	}
	return t
}

// Evaluate recomputes a service's status from its retained samples, oldest first.
func Evaluate(service string, samples []domain.HealthMetrics, t Thresholds) domain.HealthStatus {
	st := domain.HealthStatus{Service: service, Status: domain.ServiceUnknown}
	if len(samples) == 0 {
		return st
	}

	var failures int
	var total time.Duration
	for _, s := range samples {
		if !s.Success {
			failures++
		}
		total += s.ResponseTime
	}
	for i := len(samples) - 1; i >= 0 && !samples[i].Success; i-- {
		st.ConsecutiveFailures++
	}

	last := samples[len(samples)-1]
	n := float64(len(samples))
	st.TotalChecks = len(samples)
	st.LastCheck = last.Timestamp
	st.ErrorRate = float64(failures) / n * 100
	st.Uptime = 100 - st.ErrorRate
	st.AverageResponseTime = total / time.Duration(len(samples))
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].Error != "" {
			st.LastError = samples[i].Error
			break
		}
	}

	recentFailure := false
	for i := max(0, len(samples)-t.RecentWindow); i < len(samples); i++ {
		if !samples[i].Success {
			recentFailure = true
			break
		}
	}

	switch {
	case st.ConsecutiveFailures >= t.UnhealthyConsecutiveFailures,
		st.ErrorRate >= t.UnhealthyErrorRate,
		st.Uptime < t.MinUptime:
		st.Status = domain.ServiceUnhealthy
	case recentFailure,
		st.AverageResponseTime > t.DegradedResponseTime,
		st.ErrorRate > t.DegradedErrorRate:
		st.Status = domain.ServiceDegraded
	default:
		st.Status = domain.ServiceHealthy
	}
	return st
}

// Aggregate counts services per status. The system is unhealthy if any
// service is, degraded if any is degraded, unknown when nothing has been probed.
func Aggregate(statuses []domain.HealthStatus, now time.Time) domain.SystemHealth {
	sh := domain.SystemHealth{Total: len(statuses), Timestamp: now}
	for _, s := range statuses {
		switch s.Status {
		case domain.ServiceHealthy:
			sh.Healthy++
		case domain.ServiceDegraded:
			sh.Degraded++
		case domain.ServiceUnhealthy:
			sh.Unhealthy++
		default:
			sh.Unknown++
		}
	}

	switch {
	case sh.Unhealthy > 0:
		sh.Status = domain.ServiceUnhealthy
	case sh.Degraded > 0:
		sh.Status = domain.ServiceDegraded
	case sh.Healthy > 0:
		sh.Status = domain.ServiceHealthy
	default:
		sh.Status = domain.ServiceUnknown
	}
	return sh
}
