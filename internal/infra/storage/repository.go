package storage

import (
	"context"
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// ProviderUsage is the per-provider usage derived from the search audit trail.
type ProviderUsage struct {
	Provider string `json:"provider" db:"provider"`
	Attempts int64  `json:"attempts" db:"attempts"`
	Served   int64  `json:"served" db:"served"`
}

// Failed returns the attempts that did not serve the search.
func (u ProviderUsage) Failed() int64 {
	return u.Attempts - u.Served
}

// SearchSummary aggregates searches over a time window.
type SearchSummary struct {
	Total     int64         `json:"total" db:"total"`
	Succeeded int64         `json:"succeeded" db:"succeeded"`
	Cached    int64         `json:"cached" db:"cached"`
	AvgTime   time.Duration `json:"avg_time" db:"-"`
}

// SearchRepository handles the search audit trail
type SearchRepository interface {
	// Add records one search
	Add(ctx context.Context, rec *domain.SearchRecord) error

	// Recent returns the newest searches first
	Recent(ctx context.Context, limit int) ([]*domain.SearchRecord, error)

	// Summary aggregates searches created at or after since
	Summary(ctx context.Context, since time.Time) (SearchSummary, error)

	// Usage returns per-provider usage since the given time, ordered by provider
	Usage(ctx context.Context, since time.Time) ([]ProviderUsage, error)

	// DeleteOlderThan removes searches created before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// AlertRepository handles the alert history
type AlertRepository interface {
	// Add records one alert
	Add(ctx context.Context, alert *domain.Alert) error

	// Recent returns the newest alerts first
	Recent(ctx context.Context, limit int) ([]*domain.Alert, error)

	// DeleteOlderThan removes alerts created before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
