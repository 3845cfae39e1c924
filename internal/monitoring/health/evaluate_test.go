package health

import (
	"testing"
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

func samples(pattern string, rt time.Duration) []domain.HealthMetrics {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.HealthMetrics, 0, len(pattern))
	for i, c := range pattern {
		s := domain.HealthMetrics{Timestamp: base.Add(time.Duration(i) * time.Minute), ResponseTime: rt, Success: c == '+'}
		if !s.Success {
			s.Error = "probe failed"
		}
		out = append(out, s)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name    string
		pattern string
		rt      time.Duration
		want    domain.ServiceStatus
	}{
		{"no samples", "", 0, domain.ServiceUnknown},
		{"all good", "++++++++++", 100 * time.Millisecond, domain.ServiceHealthy},
		{"single failure", "-", 0, domain.ServiceUnhealthy},
		{"three consecutive", "++++++++++++++++++++---", 0, domain.ServiceUnhealthy},
		{"half failing", "+-+-", 0, domain.ServiceUnhealthy},
		{"uptime below 95", "+++++++++-++++++++", 0, domain.ServiceUnhealthy},
		{"uptime at 95 with recent failure", "+++++++++++++++-++++", 0, domain.ServiceDegraded},
		{"old failure only", "-" + repeat('+', 29), 0, domain.ServiceHealthy},
		{"recent failure in long run", repeat('+', 30) + "-++", 0, domain.ServiceDegraded},
		{"slow", "+++", 3 * time.Second, domain.ServiceDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate("svc", samples(tt.pattern, tt.rt), th)
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s (uptime %.1f, error rate %.1f, consecutive %d)",
					got.Status, tt.want, got.Uptime, got.ErrorRate, got.ConsecutiveFailures)
			}
		})
	}
}

func TestEvaluate_Counters(t *testing.T) {
	got := Evaluate("svc", samples("++--", 200*time.Millisecond), DefaultThresholds())
	if got.TotalChecks != 4 || got.ConsecutiveFailures != 2 {
		t.Errorf("counters = %+v", got)
	}
	if got.ErrorRate != 50 || got.Uptime != 50 {
		t.Errorf("rates = %.1f/%.1f", got.ErrorRate, got.Uptime)
	}
	if got.AverageResponseTime != 200*time.Millisecond {
		t.Errorf("avg = %s", got.AverageResponseTime)
	}
	if got.LastError != "probe failed" {
		t.Errorf("last error = %q", got.LastError)
	}
}

func TestAggregate(t *testing.T) {
	now := time.Now()
	sh := Aggregate([]domain.HealthStatus{
		{Status: domain.ServiceHealthy},
		{Status: domain.ServiceDegraded},
		{Status: domain.ServiceUnknown},
	}, now)
	if sh.Total != 3 || sh.Healthy != 1 || sh.Degraded != 1 || sh.Unknown != 1 {
		t.Errorf("counts = %+v", sh)
	}
	if sh.Status != domain.ServiceDegraded {
		t.Errorf("status = %s, want degraded", sh.Status)
	}

	if got := Aggregate(nil, now).Status; got != domain.ServiceUnknown {
		t.Errorf("empty status = %s, want unknown", got)
	}
	if got := Aggregate([]domain.HealthStatus{{Status: domain.ServiceUnhealthy}, {Status: domain.ServiceHealthy}}, now).Status; got != domain.ServiceUnhealthy {
		t.Errorf("status = %s, want unhealthy", got)
	}
}

func repeat(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
