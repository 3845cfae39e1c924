package provider

import (
	"encoding/json"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

const scrapingBeeURL = "https://app.scrapingbee.com/api/v1/store/google"

// ScrapingBeeAdapter talks to ScrapingBee's Google search API.
type ScrapingBeeAdapter struct{}

func (ScrapingBeeAdapter) Type() string { return "scrapingbee" }

type scrapingBeeResponse struct {
	MetaData struct {
		NumberOfResults flexInt `json:"number_of_results"`
	} `json:"meta_data"`
	OrganicResults *[]struct {
		Position    int    `json:"position"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Date        string `json:"date"`
	} `json:"organic_results"`
	RelatedQueries []struct {
		Title string `json:"title"`
	} `json:"related_queries"`
}

func (a ScrapingBeeAdapter) BuildRequest(cfg domain.ProviderConfig, opts domain.SearchOptions) (Request, error) {
	if err := requireAPIKey(cfg); err != nil {
		return Request{}, err
	}
	q := map[string]string{
		"api_key": cfg.APIKey,
		"search":  opts.Query,
	}
	setIf(q, "country_code", opts.Country)
	setIf(q, "language", opts.Language)
	setIf(q, "nb_results", itoa(opts.ResultsCount))
	setIf(q, "device", string(opts.Device))
	return Request{Method: "GET", URL: baseURL(cfg, scrapingBeeURL), Query: q}, nil
}

func (a ScrapingBeeAdapter) ParseResponse(query string, body []byte) (*domain.SearchResponse, error) {
	var raw scrapingBeeResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, invalidResponse(a.Type(), err.Error())
	}
	if raw.OrganicResults == nil {
		return nil, invalidResponse(a.Type(), "missing organic_results")
	}

	items := make([]Item, 0, len(*raw.OrganicResults))
	for _, r := range *raw.OrganicResults {
		items = append(items, Item{Title: r.Title, URL: r.URL, Snippet: r.Description, Date: r.Date})
	}
	related := make([]string, 0, len(raw.RelatedQueries))
	for _, r := range raw.RelatedQueries {
		related = append(related, r.Title)
	}
	return Normalize(query, int64(raw.MetaData.NumberOfResults), items, related), nil
}
