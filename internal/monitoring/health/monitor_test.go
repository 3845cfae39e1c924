package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/searchrelay/internal/core/clock"
	"github.com/vietddude/searchrelay/internal/core/domain"
)

// scriptedProber returns queued outcomes per service, then repeats the last one.
type scriptedProber struct {
	mu      sync.Mutex
	script  map[string][]bool
	calls   map[string]int
	latency time.Duration
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{script: make(map[string][]bool), calls: make(map[string]int)}
}

func (p *scriptedProber) set(name string, outcomes ...bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script[name] = outcomes
}

func (p *scriptedProber) Probe(_ context.Context, check domain.HealthCheck) domain.HealthMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[check.Name]++
	outcomes := p.script[check.Name]
	ok := true
	if len(outcomes) > 0 {
		ok = outcomes[0]
		if len(outcomes) > 1 {
			p.script[check.Name] = outcomes[1:]
		}
	}
	m := domain.HealthMetrics{Success: ok, ResponseTime: p.latency, StatusCode: 200}
	if !ok {
		m.StatusCode = 500
		m.Error = "unexpected status 500"
	}
	return m
}

func (p *scriptedProber) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

type collectSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (s *collectSink) Send(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return s.err
}

func (s *collectSink) all() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Alert(nil), s.alerts...)
}

func TestMonitor_RepeatedFailuresAlertOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewMonitor(Config{Checks: []domain.HealthCheck{{
		Name:           "serp-api",
		URL:            srv.URL,
		ExpectedStatus: []int{200},
		Timeout:        time.Second,
	}}}, NewHTTPProber(), clock.New())
	require.NoError(t, err)

	sink := &collectSink{}
	m.AddSink(sink)
	var heard []domain.Alert
	m.Subscribe(func(a domain.Alert) { heard = append(heard, a) })

	st, err := m.Status("serp-api")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceUnknown, st.Status)

	for i := 0; i < 3; i++ {
		st, err = m.Check(context.Background(), "serp-api")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, domain.ServiceUnhealthy, st.Status)
	assert.Equal(t, 3, st.ConsecutiveFailures)

	alerts := sink.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertServiceDown, alerts[0].Type)
	assert.Equal(t, domain.ServiceUnhealthy, alerts[0].Status)
	assert.Equal(t, "serp-api", alerts[0].Service)
	assert.NotEmpty(t, alerts[0].ID)
	assert.Len(t, heard, 1)
	assert.Len(t, m.ActiveAlerts(), 1)
}

func TestMonitor_RecoveryAfterCleanup(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	prober := newScriptedProber()
	prober.set("api", false, false, false, true)

	m, err := NewMonitor(Config{
		Checks:    []domain.HealthCheck{{Name: "api", URL: "http://api.test"}},
		Retention: time.Hour,
	}, prober, clk)
	require.NoError(t, err)
	sink := &collectSink{err: errors.New("sink down")}
	m.AddSink(sink)

	for i := 0; i < 3; i++ {
		_, _ = m.Check(context.Background(), "api")
	}

	clk.Advance(2 * time.Hour)
	assert.Equal(t, 3, m.Cleanup())
	samples, err := m.Metrics("api", 0)
	require.NoError(t, err)
	assert.Empty(t, samples)

	st, err := m.Status("api")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceUnknown, st.Status, "no samples left to back the old status")
	assert.Equal(t, 0, st.ConsecutiveFailures)
	sh := m.SystemHealth()
	assert.Equal(t, domain.ServiceUnknown, sh.Status)
	assert.Equal(t, 0, sh.Unhealthy)

	st, err = m.Check(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceHealthy, st.Status)

	alerts := sink.all()
	require.Len(t, alerts, 2, "sink errors do not stop delivery bookkeeping")
	assert.Equal(t, domain.AlertServiceDown, alerts[0].Type)
	assert.Equal(t, domain.AlertServiceRecovered, alerts[1].Type)
	assert.Equal(t, domain.ServiceUnhealthy, alerts[1].Previous)
	assert.Empty(t, m.ActiveAlerts())
}

func TestMonitor_FailureBelowUptimeFloor(t *testing.T) {
	prober := newScriptedProber()
	prober.set("api", true, true, true, true, true, false, true)
	m, err := NewMonitor(Config{Checks: []domain.HealthCheck{{Name: "api", URL: "http://api.test"}}}, prober, clock.New())
	require.NoError(t, err)
	sink := &collectSink{}
	m.AddSink(sink)

	var st domain.HealthStatus
	for i := 0; i < 7; i++ {
		st, _ = m.Check(context.Background(), "api")
	}
	// 1 failure in 7 samples puts uptime under the 95% floor.
	assert.Equal(t, domain.ServiceUnhealthy, st.Status)

	alerts := sink.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertServiceDown, alerts[0].Type)
	assert.Equal(t, domain.ServiceHealthy, alerts[0].Previous)
}

func TestMonitor_DegradedThenRecovered(t *testing.T) {
	outcomes := make([]bool, 0, 26)
	for i := 0; i < 20; i++ {
		outcomes = append(outcomes, true)
	}
	outcomes = append(outcomes, false, true, true, true, true, true)

	prober := newScriptedProber()
	prober.set("api", outcomes...)
	m, err := NewMonitor(Config{Checks: []domain.HealthCheck{{Name: "api", URL: "http://api.test"}}}, prober, clock.New())
	require.NoError(t, err)
	sink := &collectSink{}
	m.AddSink(sink)

	for i := 0; i < 21; i++ {
		_, _ = m.Check(context.Background(), "api")
	}
	st, _ := m.Status("api")
	assert.Equal(t, domain.ServiceDegraded, st.Status)

	for i := 0; i < 5; i++ {
		_, _ = m.Check(context.Background(), "api")
	}
	st, _ = m.Status("api")
	assert.Equal(t, domain.ServiceHealthy, st.Status)

	alerts := sink.all()
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.AlertServiceDegraded, alerts[0].Type)
	assert.Equal(t, domain.AlertServiceRecovered, alerts[1].Type)
}

func TestMonitor_FlappingAlertsOncePerIncident(t *testing.T) {
	var outcomes []bool
	for i := 0; i < 20; i++ {
		outcomes = append(outcomes, true)
	}
	outcomes = append(outcomes, false, false)
	for i := 0; i < 18; i++ {
		outcomes = append(outcomes, true)
	}
	outcomes = append(outcomes, false)

	prober := newScriptedProber()
	// Slow responses keep the service from ever reaching healthy.
	prober.latency = 3 * time.Second
	prober.set("api", outcomes...)
	m, err := NewMonitor(Config{Checks: []domain.HealthCheck{{Name: "api", URL: "http://api.test"}}}, prober, clock.New())
	require.NoError(t, err)
	sink := &collectSink{}
	m.AddSink(sink)

	var seen []domain.ServiceStatus
	for range outcomes {
		st, err := m.Check(context.Background(), "api")
		require.NoError(t, err)
		if len(seen) == 0 || seen[len(seen)-1] != st.Status {
			seen = append(seen, st.Status)
		}
	}
	require.Equal(t, []domain.ServiceStatus{
		domain.ServiceDegraded, domain.ServiceUnhealthy, domain.ServiceDegraded, domain.ServiceUnhealthy,
	}, seen)

	alerts := sink.all()
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.AlertServiceDegraded, alerts[0].Type)
	assert.Equal(t, domain.AlertServiceDown, alerts[1].Type)

	active := m.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, domain.AlertServiceDown, active[0].Type)
}

func TestMonitor_ServiceManagement(t *testing.T) {
	prober := newScriptedProber()
	m, err := NewMonitor(Config{}, prober, clock.New())
	require.NoError(t, err)

	require.NoError(t, m.AddService(domain.HealthCheck{Name: "a", URL: "http://a.test"}))
	require.NoError(t, m.AddService(domain.HealthCheck{Name: "b", URL: "http://b.test"}))
	assert.ErrorIs(t, m.AddService(domain.HealthCheck{Name: "a", URL: "http://a.test"}), ErrServiceExists)
	assert.Error(t, m.AddService(domain.HealthCheck{Name: "c"}), "url required")

	checks := m.Checks()
	require.Len(t, checks, 2)
	assert.Equal(t, "GET", checks[0].Method)
	assert.Equal(t, defaultInterval, checks[0].Interval)

	require.NoError(t, m.UpdateService(domain.HealthCheck{Name: "a", URL: "http://a2.test", Interval: time.Hour}))
	assert.Equal(t, "http://a2.test", m.Checks()[0].URL)
	assert.ErrorIs(t, m.UpdateService(domain.HealthCheck{Name: "zzz", URL: "http://z"}), ErrUnknownService)

	prober.set("b", false)
	results := m.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, domain.ServiceHealthy, results["a"].Status)
	assert.Equal(t, domain.ServiceUnhealthy, results["b"].Status)

	sh := m.SystemHealth()
	assert.Equal(t, 2, sh.Total)
	assert.Equal(t, 1, sh.Healthy)
	assert.Equal(t, 1, sh.Unhealthy)
	assert.Equal(t, domain.ServiceUnhealthy, sh.Status)

	require.NoError(t, m.RemoveService("b"))
	assert.ErrorIs(t, m.RemoveService("b"), ErrUnknownService)
	_, err = m.Check(context.Background(), "b")
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Equal(t, domain.ServiceHealthy, m.SystemHealth().Status)
}

func TestMonitor_StartStop(t *testing.T) {
	prober := newScriptedProber()
	m, err := NewMonitor(Config{Checks: []domain.HealthCheck{
		{Name: "fast", URL: "http://fast.test", Interval: 10 * time.Millisecond},
	}}, prober, clock.New())
	require.NoError(t, err)

	m.Start(context.Background())
	require.NoError(t, m.AddService(domain.HealthCheck{Name: "late", URL: "http://late.test", Interval: time.Hour}))

	require.Eventually(t, func() bool {
		return prober.count("fast") >= 3 && prober.count("late") >= 1
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	after := prober.count("fast")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, prober.count("fast"), "no probes after Stop")
	m.Stop()
}

func TestMonitor_MetricsLimit(t *testing.T) {
	m, err := NewMonitor(Config{Checks: []domain.HealthCheck{{Name: "api", URL: "http://api.test"}}}, newScriptedProber(), clock.New())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _ = m.Check(context.Background(), "api")
	}

	recent, err := m.Metrics("api", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	_, err = m.Metrics("nope", 2)
	assert.ErrorIs(t, err, ErrUnknownService)
}
