package search

import (
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

const (
	successStep  = 1.0
	failureStep  = 5.0
	decayStep    = 10.0
	maxRate      = 100.0
	healthyRate  = 90.0
	degradedRate = 70.0
	healthyErrs  = 3
	degradedErrs = 10
)

// EvaluateStatus derives a provider status from its success rate and error count.
func EvaluateStatus(successRate float64, errorCount int) domain.ProviderStatus {
	switch {
	case successRate >= healthyRate && errorCount < healthyErrs:
		return domain.ProviderHealthy
	case successRate >= degradedRate && errorCount < degradedErrs:
		return domain.ProviderDegraded
	default:
		return domain.ProviderUnhealthy
	}
}

func applySuccess(h *domain.ProviderHealth, now time.Time, elapsed time.Duration) {
	h.SuccessRate = min(maxRate, h.SuccessRate+successStep)
	h.ErrorCount = max(0, h.ErrorCount-1)
	h.LastCheck = now
	h.ResponseTime = elapsed
	h.Status = EvaluateStatus(h.SuccessRate, h.ErrorCount)
}

func applyFailure(h *domain.ProviderHealth, now time.Time, elapsed time.Duration, err error) {
	h.SuccessRate = max(0, h.SuccessRate-failureStep)
	h.ErrorCount++
	h.LastCheck = now
	h.ResponseTime = elapsed
	if err != nil {
		h.LastError = err.Error()
	}
	h.Status = EvaluateStatus(h.SuccessRate, h.ErrorCount)
}

func applyDecay(h *domain.ProviderHealth) {
	h.SuccessRate = min(maxRate, h.SuccessRate+decayStep)
	h.ErrorCount = max(0, h.ErrorCount-1)
	h.Status = EvaluateStatus(h.SuccessRate, h.ErrorCount)
}
