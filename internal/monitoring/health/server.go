package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/search"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
)

const defaultMetricsLimit = 50

// ProviderSystem is the part of the search system the server exposes.
type ProviderSystem interface {
	Search(ctx context.Context, opts domain.SearchOptions) (*domain.SearchResponse, error)
	Snapshot() search.Snapshot
	ProviderSnapshot(name string) (search.ProviderSnapshot, error)
	Enable(name string) error
	Disable(name string) error
	SetPriority(name string, priority int) error
	ResetBreaker(name string) error
	RequestCounts() map[string]domain.RequestCount
	AllHealth() map[string]domain.ProviderHealth
}

// ServiceSnapshot is one monitored service with its recent samples.
type ServiceSnapshot struct {
	Status domain.HealthStatus    `json:"status"`
	Check  domain.HealthCheck     `json:"check"`
	Recent []domain.HealthMetrics `json:"recent"`
}

// Export is the full health snapshot of the process.
type Export struct {
	Timestamp time.Time            `json:"timestamp"`
	Status    domain.ServiceStatus `json:"status"`
	System    domain.SystemHealth  `json:"system"`
	Providers search.Snapshot      `json:"providers"`
	Services  []ServiceSnapshot    `json:"services"`
	Alerts    []domain.Alert       `json:"active_alerts"`
}

// ExportHealthMetrics snapshots providers and services. limit caps the
// samples per service.
func ExportHealthMetrics(providers ProviderSystem, monitor *Monitor, limit int) Export {
	out := Export{
		Timestamp: monitor.clock.Now(),
		System:    monitor.SystemHealth(),
		Providers: providers.Snapshot(),
		Alerts:    monitor.ActiveAlerts(),
	}
	for _, check := range monitor.Checks() {
		st, err := monitor.Status(check.Name)
		if err != nil {
			continue
		}
		recent, _ := monitor.Metrics(check.Name, limit)
		out.Services = append(out.Services, ServiceSnapshot{Status: st, Check: check, Recent: recent})
	}
	out.Status = OverallStatus(out.System, providers.AllHealth())
	return out
}

// OverallStatus combines monitored services with provider availability.
// Searching is unhealthy when no provider is healthy or degraded.
func OverallStatus(system domain.SystemHealth, providers map[string]domain.ProviderHealth) domain.ServiceStatus {
	status := domain.ServiceHealthy
	switch system.Status {
	case domain.ServiceUnhealthy:
		status = domain.ServiceUnhealthy
	case domain.ServiceDegraded:
		status = domain.ServiceDegraded
	}

	if len(providers) == 0 {
		return status
	}
	var healthy, degraded int
	for _, h := range providers {
		switch h.Status {
		case domain.ProviderHealthy:
			healthy++
		case domain.ProviderDegraded:
			degraded++
		}
	}
	switch {
	case healthy == 0 && degraded == 0:
		return domain.ServiceUnhealthy
	case healthy == 0 && status == domain.ServiceHealthy:
		return domain.ServiceDegraded
	}
	return status
}

// Server provides HTTP endpoints for health monitoring and provider admin.
type Server struct {
	monitor   *Monitor
	providers ProviderSystem
	router    chi.Router
	server    *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, providers ProviderSystem, port int) *Server {
	s := &Server{monitor: monitor, providers: providers}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/search", s.handleSearch)
	r.Get("/stats/requests", s.handleRequestStats)
	r.Get("/alerts", s.handleAlerts)

	r.Route("/providers", func(r chi.Router) {
		r.Get("/", s.handleProviders)
		r.Get("/{name}", s.handleProvider)
		r.Post("/{name}/enable", s.handleEnable)
		r.Post("/{name}/disable", s.handleDisable)
		r.Post("/{name}/priority", s.handlePriority)
		r.Post("/{name}/reset", s.handleResetBreaker)
	})

	r.Route("/services", func(r chi.Router) {
		r.Get("/", s.handleServices)
		r.Get("/{name}", s.handleService)
		r.Post("/{name}/check", s.handleServiceCheck)
	})

	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := OverallStatus(s.monitor.SystemHealth(), s.providers.AllHealth())
	code := http.StatusOK
	if status == domain.ServiceUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	system := s.monitor.SystemHealth()
	providers := s.providers.AllHealth()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    OverallStatus(system, providers),
		"system":    system,
		"services":  s.monitor.Statuses(),
		"providers": providers,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultMetricsLimit)
	writeJSON(w, http.StatusOK, ExportHealthMetrics(s.providers, s.monitor, limit))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := domain.SearchOptions{
		Query:        q.Get("q"),
		Location:     q.Get("location"),
		Language:     q.Get("language"),
		Country:      q.Get("country"),
		Device:       domain.Device(q.Get("device")),
		ResultsCount: queryInt(r, "num", 0),
		SafeSearch:   q.Get("safe") == "true",
	}
	resp, err := s.providers.Search(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.RequestCounts())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.ActiveAlerts())
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.Snapshot())
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	snap, err := s.providers.ProviderSnapshot(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.providerAction(w, r, s.providers.Enable)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.providerAction(w, r, s.providers.Disable)
}

func (s *Server) handleResetBreaker(w http.ResponseWriter, r *http.Request) {
	s.providerAction(w, r, s.providers.ResetBreaker)
}

func (s *Server) handlePriority(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Priority *int `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Priority == nil {
		writeError(w, &routing.ValidationError{Field: "priority", Message: "expected JSON body {\"priority\": <int>}"})
		return
	}
	s.providerAction(w, r, func(name string) error {
		return s.providers.SetPriority(name, *body.Priority)
	})
}

func (s *Server) providerAction(w http.ResponseWriter, r *http.Request, fn func(name string) error) {
	name := chi.URLParam(r, "name")
	if err := fn(name); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.providers.ProviderSnapshot(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"system":   s.monitor.SystemHealth(),
		"services": s.monitor.Statuses(),
	})
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	st, err := s.monitor.Status(name)
	if err != nil {
		writeError(w, err)
		return
	}
	recent, _ := s.monitor.Metrics(name, queryInt(r, "limit", defaultMetricsLimit))
	writeJSON(w, http.StatusOK, map[string]any{"status": st, "metrics": recent})
}

func (s *Server) handleServiceCheck(w http.ResponseWriter, r *http.Request) {
	st, err := s.monitor.Check(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var vErr *routing.ValidationError
	switch {
	case errors.Is(err, search.ErrUnknownProvider), errors.Is(err, ErrUnknownService):
		code = http.StatusNotFound
	case search.IsAllProvidersFailed(err):
		code = http.StatusBadGateway
	case errors.As(err, &vErr):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
