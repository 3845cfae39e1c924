package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// Prober executes one health check and returns the sample.
type Prober interface {
	Probe(ctx context.Context, check domain.HealthCheck) domain.HealthMetrics
}

// HTTPProber probes services over HTTP with resty.
type HTTPProber struct {
	client *resty.Client
}

// NewHTTPProber creates a prober. Each probe's deadline comes from its check.
func NewHTTPProber() *HTTPProber {
	client := resty.New().
		SetHeader("User-Agent", "searchrelay-healthcheck/1.0").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &HTTPProber{client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, check domain.HealthCheck) domain.HealthMetrics {
	if check.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, check.Timeout)
		defer cancel()
	}

	method := check.Method
	if method == "" {
		method = resty.MethodGet
	}

	r := p.client.R().SetContext(ctx).SetHeaders(check.Headers)
	if check.Body != "" {
		r.SetBody(check.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, check.URL)
	sample := domain.HealthMetrics{
		Timestamp:    start,
		ResponseTime: time.Since(start),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			sample.Error = fmt.Sprintf("timeout after %s", check.Timeout)
		} else {
			sample.Error = err.Error()
		}
		return sample
	}

	sample.StatusCode = resp.StatusCode()
	if err := Validate(check, resp.StatusCode(), resp.Header(), resp.Body()); err != nil {
		sample.Error = err.Error()
		return sample
	}
	sample.Success = true
	return sample
}

// Validate checks a response against the check's expectations. Without an
// explicit status list any 2xx passes.
func Validate(check domain.HealthCheck, status int, header http.Header, body []byte) error {
	if len(check.ExpectedStatus) > 0 {
		ok := false
		for _, s := range check.ExpectedStatus {
			if s == status {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unexpected status %d (want %v)", status, check.ExpectedStatus)
		}
	} else if status < 200 || status >= 300 {
		return fmt.Errorf("unexpected status %d", status)
	}

	if check.ExpectedBody != "" && !strings.Contains(string(body), check.ExpectedBody) {
		return fmt.Errorf("response body does not contain %q", check.ExpectedBody)
	}

	if len(check.ExpectedJSON) > 0 {
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("response is not JSON: %w", err)
		}
		for path, want := range check.ExpectedJSON {
			got, ok := lookup(doc, path)
			if !ok {
				return fmt.Errorf("json field %s missing", path)
			}
			if s := fmt.Sprint(got); s != want {
				return fmt.Errorf("json field %s = %q, want %q", path, s, want)
			}
		}
	}

	for k, want := range check.ExpectedHeaders {
		if got := header.Get(k); got != want {
			return fmt.Errorf("header %s = %q, want %q", k, got, want)
		}
	}
	return nil
}

// lookup resolves a dotted path such as "data.status" in a decoded JSON document.
func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
