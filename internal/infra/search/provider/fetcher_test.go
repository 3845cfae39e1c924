package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/searchrelay/internal/infra/search/routing"
)

func TestRestyFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("missing api key header")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["q"] != "golang" {
			t.Errorf("body q = %v", body["q"])
		}
		w.Write([]byte(`{"organic": []}`))
	}))
	defer srv.Close()

	f := NewRestyFetcher("")
	resp, err := f.Fetch(context.Background(), Request{
		Method:  "POST",
		URL:     srv.URL,
		Headers: map[string]string{"X-API-KEY": "k"},
		Body:    map[string]string{"q": "golang"},
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != `{"organic": []}` {
		t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestRestyFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "x" {
			t.Errorf("query param not sent")
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	f := NewRestyFetcher("test")
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Query: map[string]string{"q": "x"}})

	var statusErr *routing.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != 429 || statusErr.Body != "slow down" {
		t.Errorf("unexpected status error %+v", statusErr)
	}
}
