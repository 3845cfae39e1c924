package provider

import (
	"encoding/json"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

const serpAPIURL = "https://serpapi.com/search.json"

// SerpAPIAdapter talks to serpapi.com's Google engine.
type SerpAPIAdapter struct{}

func (SerpAPIAdapter) Type() string { return "serpapi" }

type serpAPIResponse struct {
	Error         string `json:"error"`
	OrganicResult *[]struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
	} `json:"organic_results"`
	SearchInformation struct {
		TotalResults flexInt `json:"total_results"`
	} `json:"search_information"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"related_searches"`
}

func (a SerpAPIAdapter) BuildRequest(cfg domain.ProviderConfig, opts domain.SearchOptions) (Request, error) {
	if err := requireAPIKey(cfg); err != nil {
		return Request{}, err
	}
	q := map[string]string{
		"engine":  "google",
		"q":       opts.Query,
		"api_key": cfg.APIKey,
	}
	setIf(q, "location", opts.Location)
	setIf(q, "hl", opts.Language)
	setIf(q, "gl", opts.Country)
	setIf(q, "num", itoa(opts.ResultsCount))
	setIf(q, "device", string(opts.Device))
	if opts.SafeSearch {
		q["safe"] = "active"
	}
	return Request{Method: "GET", URL: baseURL(cfg, serpAPIURL), Query: q}, nil
}

func (a SerpAPIAdapter) ParseResponse(query string, body []byte) (*domain.SearchResponse, error) {
	var raw serpAPIResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, invalidResponse(a.Type(), err.Error())
	}
	if raw.Error != "" && raw.OrganicResult == nil {
		return nil, invalidResponse(a.Type(), raw.Error)
	}
	if raw.OrganicResult == nil {
		return nil, invalidResponse(a.Type(), "missing organic_results")
	}

	items := make([]Item, 0, len(*raw.OrganicResult))
	for _, r := range *raw.OrganicResult {
		items = append(items, Item{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Date: r.Date})
	}
	related := make([]string, 0, len(raw.RelatedSearches))
	for _, r := range raw.RelatedSearches {
		related = append(related, r.Query)
	}
	return Normalize(query, int64(raw.SearchInformation.TotalResults), items, related), nil
}

func setIf(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}
