package provider

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// Item is a provider result before normalization.
type Item struct {
	Title   string
	URL     string
	Snippet string
	Date    string
}

// Normalize builds a SearchResponse from raw items. Items without a usable
// absolute URL are dropped; positions are 1-based over the kept items.
func Normalize(query string, total int64, items []Item, related []string) *domain.SearchResponse {
	resp := &domain.SearchResponse{
		Query:        query,
		TotalResults: total,
		Results:      make([]domain.SearchResult, 0, len(items)),
	}

	for _, it := range items {
		host := DomainOf(it.URL)
		if host == "" {
			continue
		}
		resp.Results = append(resp.Results, domain.SearchResult{
			Title:    CleanText(it.Title),
			URL:      strings.TrimSpace(it.URL),
			Snippet:  CleanText(it.Snippet),
			Position: len(resp.Results) + 1,
			Domain:   host,
			Date:     strings.TrimSpace(it.Date),
		})
	}

	for _, q := range related {
		if q = CleanText(q); q != "" {
			resp.RelatedQueries = append(resp.RelatedQueries, q)
		}
	}

	if resp.TotalResults < int64(len(resp.Results)) {
		resp.TotalResults = int64(len(resp.Results))
	}
	return resp
}

// DomainOf returns the lower-cased host of an absolute URL without "www.".
func DomainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// CleanText strips markup and entities and collapses whitespace.
func CleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// flexInt decodes counts sent as numbers or as strings like "1,230,000".
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := n.Int64()
		if err != nil {
			fv, ferr := n.Float64()
			if ferr != nil {
				return err
			}
			v = int64(fv)
		}
		*f = flexInt(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*f = 0
		return nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}
