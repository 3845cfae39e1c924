package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
)

func TestSerper_ParseResponse(t *testing.T) {
	body := []byte(`{
		"searchParameters": {"q": "golang"},
		"searchInformation": {"totalResults": "1,230,000"},
		"organic": [
			{"title": "The Go <b>Programming</b> Language", "link": "https://www.go.dev/", "snippet": "Go is  an open source\n language &amp; more", "position": 7},
			{"title": "broken", "link": "not a url"},
			{"title": "Go Wiki", "link": "https://github.com/golang/go/wiki", "snippet": "Wiki", "date": "Jan 2, 2024"}
		],
		"relatedSearches": [{"query": "golang tutorial"}, {"query": " "}]
	}`)

	resp, err := SerperAdapter{}.ParseResponse("golang", body)
	require.NoError(t, err)

	assert.Equal(t, "golang", resp.Query)
	assert.Equal(t, int64(1230000), resp.TotalResults)
	require.Len(t, resp.Results, 2)

	first := resp.Results[0]
	assert.Equal(t, 1, first.Position, "positions are reassigned from 1")
	assert.Equal(t, "The Go Programming Language", first.Title)
	assert.Equal(t, "Go is an open source language & more", first.Snippet)
	assert.Equal(t, "go.dev", first.Domain)

	second := resp.Results[1]
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, "github.com", second.Domain)
	assert.Equal(t, "Jan 2, 2024", second.Date)

	assert.Equal(t, []string{"golang tutorial"}, resp.RelatedQueries)
}

func TestSerpAPI_ParseResponse(t *testing.T) {
	body := []byte(`{
		"search_information": {"total_results": 42},
		"organic_results": [
			{"position": 1, "title": "A", "link": "https://a.example.com/x", "snippet": "first"},
			{"position": 2, "title": "B", "link": "http://b.example.org", "snippet": "second"}
		],
		"related_searches": [{"query": "more a"}]
	}`)

	resp, err := SerpAPIAdapter{}.ParseResponse("q", body)
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.TotalResults)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a.example.com", resp.Results[0].Domain)
	assert.Equal(t, "b.example.org", resp.Results[1].Domain)
	assert.Equal(t, []string{"more a"}, resp.RelatedQueries)
}

func TestScrapingBee_ParseResponse(t *testing.T) {
	body := []byte(`{
		"meta_data": {"number_of_results": 3},
		"organic_results": [
			{"position": 1, "title": "Bee", "url": "https://scrapingbee.com", "description": "desc"}
		],
		"related_queries": [{"title": "bee api"}]
	}`)

	resp, err := ScrapingBeeAdapter{}.ParseResponse("bee", body)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalResults)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "desc", resp.Results[0].Snippet)
	assert.Equal(t, []string{"bee api"}, resp.RelatedQueries)
}

func TestParseResponse_MissingResults(t *testing.T) {
	adapters := []Adapter{SerperAdapter{}, SerpAPIAdapter{}, ScrapingBeeAdapter{}}
	for _, a := range adapters {
		t.Run(a.Type(), func(t *testing.T) {
			_, err := a.ParseResponse("q", []byte(`{"unexpected": true}`))
			var vErr *routing.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Contains(t, vErr.Message, "invalid response format")

			_, err = a.ParseResponse("q", []byte(`not json`))
			assert.True(t, errors.As(err, &vErr))
		})
	}
}

func TestParseResponse_EmptyResultsIsValid(t *testing.T) {
	resp, err := SerperAdapter{}.ParseResponse("q", []byte(`{"organic": []}`))
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, int64(0), resp.TotalResults)
}

func TestSerpAPI_ErrorBody(t *testing.T) {
	_, err := SerpAPIAdapter{}.ParseResponse("q", []byte(`{"error": "Invalid API key."}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key.")
}

func TestBuildRequest(t *testing.T) {
	cfg := domain.ProviderConfig{Name: "p", APIKey: "secret"}
	opts := domain.SearchOptions{
		Query:        "golang",
		Country:      "us",
		Language:     "en",
		ResultsCount: 5,
		SafeSearch:   true,
		Device:       domain.DeviceMobile,
	}

	req, err := SerperAdapter{}.BuildRequest(cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, serperURL, req.URL)
	assert.Equal(t, "secret", req.Headers["X-API-KEY"])
	body := req.Body.(serperRequest)
	assert.Equal(t, "golang", body.Q)
	assert.Equal(t, 5, body.Num)
	assert.Equal(t, "active", body.Safe)

	req, err = SerpAPIAdapter{}.BuildRequest(cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "secret", req.Query["api_key"])
	assert.Equal(t, "5", req.Query["num"])
	assert.Equal(t, "google", req.Query["engine"])

	cfg.BaseURL = "http://localhost:9999/search"
	req, err = ScrapingBeeAdapter{}.BuildRequest(cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/search", req.URL)
	assert.Equal(t, "golang", req.Query["search"])
	assert.Equal(t, "us", req.Query["country_code"])
}

func TestBuildRequest_RequiresKey(t *testing.T) {
	_, err := SerperAdapter{}.BuildRequest(domain.ProviderConfig{Name: "p"}, domain.SearchOptions{Query: "q"})
	var vErr *routing.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "api_key", vErr.Field)
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"scrapingbee", "serpapi", "serper"}, r.Types())

	a, err := r.Lookup(domain.ProviderConfig{Name: "primary", Type: "serpapi"})
	require.NoError(t, err)
	assert.Equal(t, "serpapi", a.Type())

	a, err = r.Lookup(domain.ProviderConfig{Name: "serper"})
	require.NoError(t, err)
	assert.Equal(t, "serper", a.Type())

	_, err = r.Lookup(domain.ProviderConfig{Name: "bing"})
	assert.Error(t, err)
}
