package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vietddude/searchrelay/internal/infra/search/routing"
)

// Request is a transport-neutral outbound HTTP request built by an adapter.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    any
}

// Response is the raw result of a fetch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher performs outbound HTTP. Non-2xx responses return a *routing.StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// RestyFetcher implements Fetcher on a shared resty client.
type RestyFetcher struct {
	client *resty.Client
}

// NewRestyFetcher creates a fetcher. Per-request deadlines come from ctx.
func NewRestyFetcher(userAgent string) *RestyFetcher {
	if userAgent == "" {
		userAgent = "searchrelay/1.0"
	}
	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(60 * time.Second)
	return &RestyFetcher{client: client}
}

// NewRestyFetcherWithClient wraps an existing resty client.
func NewRestyFetcherWithClient(client *resty.Client) *RestyFetcher {
	return &RestyFetcher{client: client}
}

func (f *RestyFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	r := f.client.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = resty.MethodGet
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}
	if out.StatusCode < 200 || out.StatusCode >= 300 {
		return out, &routing.StatusError{StatusCode: out.StatusCode, Body: string(out.Body)}
	}
	return out, nil
}
