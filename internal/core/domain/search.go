package domain

import "time"

// Device is the client form factor a search is performed for.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
)

// SearchOptions describes a single search request.
type SearchOptions struct {
	Query        string `json:"query"`
	Location     string `json:"location,omitempty"`
	Language     string `json:"language,omitempty"`
	Country      string `json:"country,omitempty"`
	Device       Device `json:"device,omitempty"`
	ResultsCount int    `json:"results_count,omitempty"`
	SafeSearch   bool   `json:"safe_search,omitempty"`
}

// SearchResult is one normalized organic result.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Domain   string `json:"domain"`
	Date     string `json:"date,omitempty"`
}

// SearchResponse is the provider-independent shape every adapter produces.
type SearchResponse struct {
	Query          string         `json:"query"`
	TotalResults   int64          `json:"total_results"`
	Results        []SearchResult `json:"results"`
	RelatedQueries []string       `json:"related_queries,omitempty"`
	SearchTime     time.Duration  `json:"search_time"`
	Provider       string         `json:"provider"`
	Cached         bool           `json:"cached,omitempty"`
}

// SearchRecord is the audit entry written for every search.
type SearchRecord struct {
	ID        string        `json:"id" db:"id"`
	Query     string        `json:"query" db:"query"`
	Provider  string        `json:"provider" db:"provider"`
	Attempted []string      `json:"attempted" db:"attempted"`
	Success   bool          `json:"success" db:"success"`
	Cached    bool          `json:"cached" db:"cached"`
	Duration  time.Duration `json:"duration" db:"-"`
	Error     string        `json:"error,omitempty" db:"error"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
