package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/searchrelay/internal/core/clock"
	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/core/worker"
	"github.com/vietddude/searchrelay/internal/monitoring/metrics"
)

var (
	// ErrUnknownService is returned for operations on unregistered services.
	ErrUnknownService = errors.New("unknown service")

	// ErrServiceExists is returned when adding a duplicate service.
	ErrServiceExists = errors.New("service already registered")
)

const (
	defaultInterval        = time.Minute
	defaultProbeTimeout    = 10 * time.Second
	defaultRetention       = 24 * time.Hour
	defaultCleanupInterval = time.Hour
	alertTimeout           = 10 * time.Second
)

// Config configures the monitor.
type Config struct {
	Checks          []domain.HealthCheck
	Thresholds      Thresholds
	Retention       time.Duration
	CleanupInterval time.Duration
}

type service struct {
	check   domain.HealthCheck
	status  domain.HealthStatus
	samples []domain.HealthMetrics
	task    *worker.Task
}

// Monitor probes services on independent schedules and tracks their health.
type Monitor struct {
	mu        sync.RWMutex
	services  map[string]*service
	prober    Prober
	clock     clock.Clock
	cfg       Config
	sinks     []AlertSink
	listeners []Listener
	active    map[string]domain.Alert

	running bool
	ctx     context.Context
	cleanup *worker.Task
}

// NewMonitor creates a monitor. Services start in the unknown state.
func NewMonitor(cfg Config, prober Prober, clk clock.Clock) (*Monitor, error) {
	if prober == nil {
		prober = NewHTTPProber()
	}
	if clk == nil {
		clk = clock.New()
	}
	cfg.Thresholds = cfg.Thresholds.withDefaults()
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	m := &Monitor{
		services: make(map[string]*service),
		prober:   prober,
		clock:    clk,
		cfg:      cfg,
		active:   make(map[string]domain.Alert),
	}
	m.cleanup = worker.NewTask("health-metrics-cleanup", cfg.CleanupInterval, func(context.Context) {
		m.Cleanup()
	})

	for _, c := range cfg.Checks {
		if err := m.AddService(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddSink registers an alert sink.
func (m *Monitor) AddSink(s AlertSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Subscribe registers an in-process alert listener.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start launches one probe loop per service plus the cleanup loop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.ctx = ctx
	for _, svc := range m.services {
		svc.task.Start(ctx)
	}
	count := len(m.services)
	m.mu.Unlock()

	m.cleanup.Start(ctx)
	slog.Info("Health monitor started", "services", count, "retention", m.cfg.Retention)
}

// Stop halts every loop and waits for in-flight probes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	tasks := make([]*worker.Task, 0, len(m.services))
	for _, svc := range m.services {
		tasks = append(tasks, svc.task)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	m.cleanup.Stop()
	slog.Info("Health monitor stopped")
}

// AddService registers a check, starting its loop if the monitor is running.
func (m *Monitor) AddService(check domain.HealthCheck) error {
	check, err := normalizeCheck(check)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[check.Name]; ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, check.Name)
	}
	svc := &service{
		check:  check,
		status: domain.HealthStatus{Service: check.Name, Status: domain.ServiceUnknown},
	}
	svc.task = m.probeTask(check)
	m.services[check.Name] = svc
	if m.running {
		svc.task.Start(m.ctx)
	}
	metrics.ServiceStatus.WithLabelValues(check.Name).Set(statusValue(domain.ServiceUnknown))
	return nil
}

// RemoveService stops and forgets a service.
func (m *Monitor) RemoveService(name string) error {
	m.mu.Lock()
	svc, ok := m.services[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	delete(m.services, name)
	delete(m.active, name)
	m.mu.Unlock()

	svc.task.Stop()
	metrics.ServiceStatus.DeleteLabelValues(name)
	metrics.ServiceUptime.DeleteLabelValues(name)
	return nil
}

// UpdateService replaces a service's probe configuration, keeping its history.
func (m *Monitor) UpdateService(check domain.HealthCheck) error {
	check, err := normalizeCheck(check)
	if err != nil {
		return err
	}

	m.mu.Lock()
	svc, ok := m.services[check.Name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, check.Name)
	}
	old := svc.task
	svc.check = check
	svc.task = m.probeTask(check)
	running, ctx := m.running, m.ctx
	m.mu.Unlock()

	old.Stop()
	if running {
		svc.task.Start(ctx)
	}
	return nil
}

// Check forces an immediate probe of one service.
func (m *Monitor) Check(ctx context.Context, name string) (domain.HealthStatus, error) {
	m.mu.RLock()
	svc, ok := m.services[name]
	var check domain.HealthCheck
	if ok {
		check = svc.check
	}
	m.mu.RUnlock()
	if !ok {
		return domain.HealthStatus{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}

	sample := m.prober.Probe(ctx, check)
	sample.Timestamp = m.clock.Now()
	metrics.ServiceProbeLatency.WithLabelValues(name).Observe(sample.ResponseTime.Seconds())

	m.mu.Lock()
	svc, ok = m.services[name]
	if !ok {
		m.mu.Unlock()
		return domain.HealthStatus{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	svc.samples = append(svc.samples, sample)
	prev := svc.status.Status
	svc.status = Evaluate(name, svc.samples, m.cfg.Thresholds)
	st := svc.status
	// A status reset by Cleanup still owes a recovery for the open incident.
	if open, ok := m.active[name]; ok && prev == domain.ServiceUnknown {
		prev = open.Status
	}
	m.mu.Unlock()

	metrics.ServiceStatus.WithLabelValues(name).Set(statusValue(st.Status))
	metrics.ServiceUptime.WithLabelValues(name).Set(st.Uptime)
	if !sample.Success {
		slog.Debug("Health probe failed", "service", name, "status_code", sample.StatusCode, "error", sample.Error)
	}

	if typ, severity, msg, ok := alertFor(name, prev, st.Status, st); ok {
		m.raise(ctx, domain.Alert{
			ID:        uuid.NewString(),
			Service:   name,
			Type:      typ,
			Severity:  severity,
			Status:    st.Status,
			Previous:  prev,
			Message:   msg,
			CreatedAt: sample.Timestamp,
		})
	}
	return st, nil
}

// CheckAll probes every service concurrently.
func (m *Monitor) CheckAll(ctx context.Context) map[string]domain.HealthStatus {
	names := m.names()
	results := make([]domain.HealthStatus, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, name := range names {
		g.Go(func() error {
			st, err := m.Check(gctx, name)
			if err != nil {
				return nil // removed concurrently
			}
			results[i] = st
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]domain.HealthStatus, len(names))
	for i, name := range names {
		if results[i].Service != "" {
			out[name] = results[i]
		}
	}
	return out
}

// Status returns the current status of one service.
func (m *Monitor) Status(name string) (domain.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	if !ok {
		return domain.HealthStatus{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return svc.status, nil
}

// Statuses returns every service's status sorted by name.
func (m *Monitor) Statuses() []domain.HealthStatus {
	m.mu.RLock()
	out := make([]domain.HealthStatus, 0, len(m.services))
	for _, svc := range m.services {
		out = append(out, svc.status)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// Metrics returns up to limit most recent samples of a service, oldest first.
// A limit of zero returns all retained samples.
func (m *Monitor) Metrics(name string, limit int) ([]domain.HealthMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	samples := svc.samples
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	out := make([]domain.HealthMetrics, len(samples))
	copy(out, samples)
	return out, nil
}

// Checks returns every registered probe configuration.
func (m *Monitor) Checks() []domain.HealthCheck {
	m.mu.RLock()
	out := make([]domain.HealthCheck, 0, len(m.services))
	for _, svc := range m.services {
		out = append(out, svc.check)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SystemHealth aggregates every service's status.
func (m *Monitor) SystemHealth() domain.SystemHealth {
	return Aggregate(m.Statuses(), m.clock.Now())
}

// ActiveAlerts returns the unresolved down/degraded alerts.
func (m *Monitor) ActiveAlerts() []domain.Alert {
	m.mu.RLock()
	out := make([]domain.Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// Cleanup drops samples older than the retention window and recomputes status.
// A service left with no samples goes back to unknown.
func (m *Monitor) Cleanup() int {
	cutoff := m.clock.Now().Add(-m.cfg.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := 0
	for name, svc := range m.services {
		keep := 0
		for keep < len(svc.samples) && svc.samples[keep].Timestamp.Before(cutoff) {
			keep++
		}
		if keep == 0 {
			continue
		}
		pruned += keep
		svc.samples = append([]domain.HealthMetrics(nil), svc.samples[keep:]...)
		if len(svc.samples) > 0 {
			svc.status = Evaluate(name, svc.samples, m.cfg.Thresholds)
		} else {
			svc.status = domain.HealthStatus{Service: name, Status: domain.ServiceUnknown}
			metrics.ServiceStatus.WithLabelValues(name).Set(statusValue(domain.ServiceUnknown))
		}
	}
	if pruned > 0 {
		slog.Debug("Pruned health samples", "count", pruned, "cutoff", cutoff)
	}
	return pruned
}

func (m *Monitor) raise(ctx context.Context, alert domain.Alert) {
	m.mu.Lock()
	if open, ok := m.active[alert.Service]; ok && alert.Type != domain.AlertServiceRecovered &&
		alertRank(open.Type) >= alertRank(alert.Type) {
		m.mu.Unlock()
		slog.Debug("Alert already open", "service", alert.Service, "type", alert.Type, "open", open.Type)
		return
	}
	if alert.Type == domain.AlertServiceRecovered {
		delete(m.active, alert.Service)
	} else {
		m.active[alert.Service] = alert
	}
	sinks := append([]AlertSink(nil), m.sinks...)
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	metrics.AlertsTotal.WithLabelValues(alert.Service, string(alert.Type)).Inc()

	for _, l := range listeners {
		l(alert)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	for _, s := range sinks {
		if err := s.Send(ctx, alert); err != nil {
			slog.Error("Failed to deliver alert", "service", alert.Service, "type", alert.Type, "error", err)
		}
	}
}

func (m *Monitor) probeTask(check domain.HealthCheck) *worker.Task {
	name := check.Name
	return worker.NewTask("health-probe:"+name, check.Interval, func(ctx context.Context) {
		if _, err := m.Check(ctx, name); err != nil {
			slog.Debug("Probe skipped", "service", name, "error", err)
		}
	}).Eager()
}

func (m *Monitor) names() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.services))
	for name := range m.services {
		out = append(out, name)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

func normalizeCheck(c domain.HealthCheck) (domain.HealthCheck, error) {
	if c.Name == "" {
		return c, errors.New("health check name is required")
	}
	if c.URL == "" {
		return c, fmt.Errorf("health check %s: url is required", c.Name)
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultProbeTimeout
	}
	return c, nil
}

func statusValue(s domain.ServiceStatus) float64 {
	switch s {
	case domain.ServiceHealthy:
		return 0
	case domain.ServiceDegraded:
		return 1
	case domain.ServiceUnhealthy:
		return 2
	default:
		return 3
	}
}
