package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/storage"
)

// AlertRepo implements storage.AlertRepository using PostgreSQL.
type AlertRepo struct {
	db *DB
}

var _ storage.AlertRepository = (*AlertRepo)(nil)

// NewAlertRepo creates a new PostgreSQL alert repository.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// Add records one alert.
func (r *AlertRepo) Add(ctx context.Context, alert *domain.Alert) error {
	query := `
		INSERT INTO alerts (id, service, type, severity, status, previous_status, message, created_at)
		VALUES (:id, :service, :type, :severity, :status, :previous_status, :message, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("failed to add alert: %w", err)
	}
	return nil
}

// Recent returns the newest alerts first.
func (r *AlertRepo) Recent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, service, type, severity, status, previous_status, message, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`
	var out []*domain.Alert
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes alerts created before the given time.
func (r *AlertRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return res.RowsAffected()
}
