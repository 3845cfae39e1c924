package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/searchrelay/internal/monitoring/metrics"
)

// Prunable is a store whose rows expire.
type Prunable interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Pruner deletes old audit data based on retention policy.
type Pruner struct {
	retention time.Duration
	stores    map[string]Prunable
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, stores map[string]Prunable) *Pruner {
	return &Pruner{
		retention: retention,
		stores:    stores,
		now:       time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// 10% of retention, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune deletes rows older than the retention window from every store.
func (p *Pruner) Prune(ctx context.Context) int64 {
	threshold := p.now().Add(-p.retention)

	var total int64
	for name, store := range p.stores {
		n, err := store.DeleteOlderThan(ctx, threshold)
		if err != nil {
			slog.Error("Failed to prune", "store", name, "error", err)
			continue
		}
		if n > 0 {
			metrics.AuditRowsPruned.WithLabelValues(name).Add(float64(n))
			slog.Debug("Pruned old rows", "store", name, "count", n)
		}
		total += n
	}
	return total
}
