package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/storage"
)

// SearchRepo implements storage.SearchRepository using PostgreSQL.
type SearchRepo struct {
	db *DB
}

var _ storage.SearchRepository = (*SearchRepo)(nil)

// NewSearchRepo creates a new PostgreSQL search repository.
func NewSearchRepo(db *DB) *SearchRepo {
	return &SearchRepo{db: db}
}

type searchRow struct {
	ID         string         `db:"id"`
	Query      string         `db:"query"`
	Provider   string         `db:"provider"`
	Attempted  pq.StringArray `db:"attempted"`
	Success    bool           `db:"success"`
	Cached     bool           `db:"cached"`
	DurationMs int64          `db:"duration_ms"`
	Error      string         `db:"error"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r searchRow) toDomain() *domain.SearchRecord {
	return &domain.SearchRecord{
		ID:        r.ID,
		Query:     r.Query,
		Provider:  r.Provider,
		Attempted: []string(r.Attempted),
		Success:   r.Success,
		Cached:    r.Cached,
		Duration:  time.Duration(r.DurationMs) * time.Millisecond,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
}

// Add records one search.
func (r *SearchRepo) Add(ctx context.Context, rec *domain.SearchRecord) error {
	query := `
		INSERT INTO searches (id, query, provider, attempted, success, cached, duration_ms, error, created_at)
		VALUES (:id, :query, :provider, :attempted, :success, :cached, :duration_ms, :error, :created_at)
	`
	row := searchRow{
		ID:         rec.ID,
		Query:      rec.Query,
		Provider:   rec.Provider,
		Attempted:  pq.StringArray(rec.Attempted),
		Success:    rec.Success,
		Cached:     rec.Cached,
		DurationMs: rec.Duration.Milliseconds(),
		Error:      rec.Error,
		CreatedAt:  rec.CreatedAt,
	}
	if row.Attempted == nil {
		row.Attempted = pq.StringArray{}
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to add search: %w", err)
	}
	return nil
}

// Recent returns the newest searches first.
func (r *SearchRepo) Recent(ctx context.Context, limit int) ([]*domain.SearchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, query, provider, attempted, success, cached, duration_ms, error, created_at
		FROM searches
		ORDER BY created_at DESC
		LIMIT $1
	`
	var rows []searchRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}

	out := make([]*domain.SearchRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Summary aggregates searches created at or after since.
func (r *SearchRepo) Summary(ctx context.Context, since time.Time) (storage.SearchSummary, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE success) AS succeeded,
			COUNT(*) FILTER (WHERE cached) AS cached,
			COALESCE(AVG(duration_ms) FILTER (WHERE NOT cached), 0)::BIGINT AS avg_ms
		FROM searches
		WHERE created_at >= $1
	`
	var dest struct {
		storage.SearchSummary
		AvgMs int64 `db:"avg_ms"`
	}
	if err := r.db.GetContext(ctx, &dest, query, since); err != nil {
		return storage.SearchSummary{}, fmt.Errorf("failed to summarize searches: %w", err)
	}
	sum := dest.SearchSummary
	sum.AvgTime = time.Duration(dest.AvgMs) * time.Millisecond
	return sum, nil
}

// Usage returns per-provider usage derived from the attempted lists.
func (r *SearchRepo) Usage(ctx context.Context, since time.Time) ([]storage.ProviderUsage, error) {
	query := `
		SELECT
			p.provider AS provider,
			COUNT(*) AS attempts,
			COUNT(*) FILTER (WHERE s.success AND NOT s.cached AND s.provider = p.provider) AS served
		FROM searches s
		CROSS JOIN LATERAL unnest(s.attempted) AS p(provider)
		WHERE s.created_at >= $1
		GROUP BY p.provider
		ORDER BY p.provider
	`
	var out []storage.ProviderUsage
	if err := r.db.SelectContext(ctx, &out, query, since); err != nil {
		return nil, fmt.Errorf("failed to compute provider usage: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes searches created before the given time.
func (r *SearchRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM searches WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune searches: %w", err)
	}
	return res.RowsAffected()
}
