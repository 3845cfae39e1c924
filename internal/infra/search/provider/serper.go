package provider

import (
	"encoding/json"
	"strconv"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

const serperURL = "https://google.serper.dev/search"

// SerperAdapter talks to google.serper.dev.
type SerperAdapter struct{}

func (SerperAdapter) Type() string { return "serper" }

type serperRequest struct {
	Q        string `json:"q"`
	Location string `json:"location,omitempty"`
	GL       string `json:"gl,omitempty"`
	HL       string `json:"hl,omitempty"`
	Num      int    `json:"num,omitempty"`
	Device   string `json:"device,omitempty"`
	Safe     string `json:"safe,omitempty"`
}

type serperResponse struct {
	Organic *[]struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Position int    `json:"position"`
	} `json:"organic"`
	SearchInformation struct {
		TotalResults flexInt `json:"totalResults"`
	} `json:"searchInformation"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
}

func (a SerperAdapter) BuildRequest(cfg domain.ProviderConfig, opts domain.SearchOptions) (Request, error) {
	if err := requireAPIKey(cfg); err != nil {
		return Request{}, err
	}
	body := serperRequest{
		Q:        opts.Query,
		Location: opts.Location,
		GL:       opts.Country,
		HL:       opts.Language,
		Num:      opts.ResultsCount,
		Device:   string(opts.Device),
	}
	if opts.SafeSearch {
		body.Safe = "active"
	}
	return Request{
		Method:  "POST",
		URL:     baseURL(cfg, serperURL),
		Headers: map[string]string{"X-API-KEY": cfg.APIKey},
		Body:    body,
	}, nil
}

func (a SerperAdapter) ParseResponse(query string, body []byte) (*domain.SearchResponse, error) {
	var raw serperResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, invalidResponse(a.Type(), err.Error())
	}
	if raw.Organic == nil {
		return nil, invalidResponse(a.Type(), "missing organic")
	}

	items := make([]Item, 0, len(*raw.Organic))
	for _, r := range *raw.Organic {
		items = append(items, Item{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Date: r.Date})
	}
	related := make([]string, 0, len(raw.RelatedSearches))
	for _, r := range raw.RelatedSearches {
		related = append(related, r.Query)
	}
	return Normalize(query, int64(raw.SearchInformation.TotalResults), items, related), nil
}

func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
