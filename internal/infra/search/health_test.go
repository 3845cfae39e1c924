package search

import (
	"errors"
	"testing"
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

func TestEvaluateStatus(t *testing.T) {
	tests := []struct {
		rate   float64
		errors int
		want   domain.ProviderStatus
	}{
		{100, 0, domain.ProviderHealthy},
		{90, 2, domain.ProviderHealthy},
		{90, 3, domain.ProviderDegraded},
		{89.9, 0, domain.ProviderDegraded},
		{70, 9, domain.ProviderDegraded},
		{70, 10, domain.ProviderUnhealthy},
		{69.9, 0, domain.ProviderUnhealthy},
		{0, 0, domain.ProviderUnhealthy},
	}

	for _, tt := range tests {
		if got := EvaluateStatus(tt.rate, tt.errors); got != tt.want {
			t.Errorf("EvaluateStatus(%v, %d) = %s, want %s", tt.rate, tt.errors, got, tt.want)
		}
	}
}

func TestHealthArithmetic(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := domain.NewProviderHealth()

	applySuccess(&h, now, time.Millisecond)
	if h.SuccessRate != 100 || h.ErrorCount != 0 {
		t.Fatalf("success must cap at 100 and floor errors at 0: %+v", h)
	}

	for i := 0; i < 3; i++ {
		applyFailure(&h, now, time.Millisecond, errors.New("fail"))
	}
	if h.SuccessRate != 85 || h.ErrorCount != 3 || h.Status != domain.ProviderDegraded {
		t.Fatalf("after 3 failures got %+v", h)
	}
	if h.LastError != "fail" || !h.LastCheck.Equal(now) {
		t.Errorf("last error/check not recorded: %+v", h)
	}

	for i := 0; i < 30; i++ {
		applyFailure(&h, now, 0, nil)
	}
	if h.SuccessRate != 0 {
		t.Errorf("success rate must floor at 0, got %v", h.SuccessRate)
	}

	applySuccess(&h, now, 0)
	if h.SuccessRate != 1 || h.ErrorCount != 32 {
		t.Errorf("got %+v", h)
	}
}
