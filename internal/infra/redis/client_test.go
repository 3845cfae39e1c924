package redis

import "testing"

func TestKeys(t *testing.T) {
	if got := searchKey("abc"); got != "searchrelay:search:abc" {
		t.Errorf("searchKey = %q", got)
	}
	if AlertChannel != "searchrelay:alerts" {
		t.Errorf("AlertChannel = %q", AlertChannel)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not-a-redis-url"}); err == nil {
		t.Error("Expected error for invalid URL")
	}
}
