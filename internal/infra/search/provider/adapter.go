// Package provider adapts individual search APIs to one request/response shape.
//
// This package contains:
//   - Adapter: builds a provider request and parses its response
//   - Registry: lookup table of adapters keyed by provider type
//   - RestyFetcher: HTTP transport returning typed status errors
//   - Normalize: shared result cleanup (positions, domains, snippet text)
package provider

import (
	"fmt"
	"sort"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
)

// Adapter converts between the common search shape and one provider's API.
type Adapter interface {
	// Type returns the adapter key (e.g. "serper").
	Type() string

	// BuildRequest maps options onto the provider's request format.
	BuildRequest(cfg domain.ProviderConfig, opts domain.SearchOptions) (Request, error)

	// ParseResponse maps a 2xx body onto SearchResponse. A body missing the
	// provider's result list is rejected with a ValidationError.
	ParseResponse(query string, body []byte) (*domain.SearchResponse, error)
}

// Registry maps provider types to adapters.
type Registry map[string]Adapter

// DefaultRegistry returns the built-in adapters.
func DefaultRegistry() Registry {
	r := Registry{}
	r.Register(SerperAdapter{})
	r.Register(SerpAPIAdapter{})
	r.Register(ScrapingBeeAdapter{})
	return r
}

// Register adds or replaces an adapter.
func (r Registry) Register(a Adapter) {
	r[a.Type()] = a
}

// Lookup returns the adapter for cfg.
func (r Registry) Lookup(cfg domain.ProviderConfig) (Adapter, error) {
	a, ok := r[cfg.AdapterType()]
	if !ok {
		return nil, fmt.Errorf("no adapter for provider %s (type %q)", cfg.Name, cfg.AdapterType())
	}
	return a, nil
}

// Types lists registered adapter keys.
func (r Registry) Types() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ProbeOptions is the low-cost request used for active health checks.
func ProbeOptions() domain.SearchOptions {
	return domain.SearchOptions{Query: "test", ResultsCount: 1}
}

func invalidResponse(provider, reason string) error {
	return &routing.ValidationError{Field: "response", Message: fmt.Sprintf("invalid response format from %s: %s", provider, reason)}
}

func baseURL(cfg domain.ProviderConfig, def string) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return def
}

func requireAPIKey(cfg domain.ProviderConfig) error {
	if cfg.APIKey == "" {
		return &routing.ValidationError{Field: "api_key", Message: fmt.Sprintf("provider %s has no API key", cfg.Name)}
	}
	return nil
}
