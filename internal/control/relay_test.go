package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/searchrelay/internal/core/config"
	"github.com/vietddude/searchrelay/internal/core/domain"
)

const serperBody = `{
	"organic": [
		{"title": "The Go Programming Language", "link": "https://go.dev/", "snippet": "Go is an open source language."},
		{"title": "Go on GitHub", "link": "https://www.github.com/golang/go", "snippet": "The Go repo."}
	],
	"searchInformation": {"totalResults": "1,200"},
	"relatedSearches": [{"query": "golang tutorial"}]
}`

func providerServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-API-KEY") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRelay(t *testing.T, primaryStatus int) (*Relay, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var primaryHits, backupHits atomic.Int32
	primary := providerServer(t, primaryStatus, `{"message": "boom"}`, &primaryHits)
	backup := providerServer(t, http.StatusOK, serperBody, &backupHits)
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	t.Cleanup(service.Close)

	cfg := Config{
		Search: config.SearchConfig{
			Providers: []config.ProviderConfig{
				{Name: "primary", Type: "serper", APIKey: "k1", BaseURL: primary.URL, Priority: 1},
				{Name: "backup", Type: "serper", APIKey: "k2", BaseURL: backup.URL, Priority: 2},
			},
			Breaker:  config.BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute},
			CacheTTL: time.Minute,
		},
		Monitor: config.MonitorConfig{
			Checks: []config.CheckConfig{{
				Name:         "api",
				URL:          service.URL,
				Interval:     time.Hour,
				ExpectedJSON: map[string]string{"status": "ok"},
			}},
		},
	}

	relay, err := NewRelay(context.Background(), cfg)
	require.NoError(t, err)
	return relay, &primaryHits, &backupHits
}

func TestRelay_FallbackCacheAndAudit(t *testing.T) {
	relay, primaryHits, backupHits := newTestRelay(t, http.StatusInternalServerError)
	ctx := context.Background()

	resp, err := relay.System().Search(ctx, domain.SearchOptions{Query: "golang"})
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Provider)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, "github.com", resp.Results[1].Domain)
	assert.Equal(t, int64(1200), resp.TotalResults)
	assert.Equal(t, int32(1), primaryHits.Load())
	assert.Equal(t, int32(1), backupHits.Load())

	h, err := relay.System().Health("primary")
	require.NoError(t, err)
	assert.Equal(t, 1, h.ErrorCount)
	assert.InDelta(t, 95, h.SuccessRate, 0.001)

	cached, err := relay.System().Search(ctx, domain.SearchOptions{Query: "golang"})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, int32(1), backupHits.Load(), "cache hit bypasses providers")

	recent, err := relay.Searches().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	usage, err := relay.Searches().Usage(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "backup", usage[0].Provider)
	assert.Equal(t, int64(1), usage[0].Served)
	assert.Equal(t, "primary", usage[1].Provider)
	assert.Equal(t, int64(1), usage[1].Failed())
}

func TestRelay_AllProvidersFailOverHTTP(t *testing.T) {
	relay, _, _ := newTestRelay(t, http.StatusInternalServerError)
	require.NoError(t, relay.System().Disable("backup"))

	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/search?q=golang")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body["error"], "all providers failed")
	assert.Contains(t, body["error"], "primary")
}

func TestRelay_StartStop(t *testing.T) {
	relay, _, _ := newTestRelay(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, relay.Start(ctx))

	require.Eventually(t, func() bool {
		st, err := relay.Monitor().Status("api")
		return err == nil && st.Status == domain.ServiceHealthy
	}, 5*time.Second, 20*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, relay.Stop(stopCtx))
}

func TestConfigFrom(t *testing.T) {
	app := &config.AppConfig{
		Server: config.ServerConfig{Port: 9000},
		Search: config.SearchConfig{CacheTTL: time.Minute},
	}
	app.Database.URL = "postgres://localhost/db"

	cfg := ConfigFrom(app)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, time.Minute, cfg.Search.CacheTTL)
	assert.Equal(t, "postgres://localhost/db", cfg.Database.URL)
}
