package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/storage"
)

// MemoryStorage keeps the audit trail in process. It is used when no
// database is configured.
type MemoryStorage struct {
	searches []*domain.SearchRecord
	alerts   []*domain.Alert
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// -----------------------------------------------------------------------------
// Search Repository
// -----------------------------------------------------------------------------

type SearchRepo struct {
	store *MemoryStorage
}

var _ storage.SearchRepository = (*SearchRepo)(nil)

func NewSearchRepo(store *MemoryStorage) *SearchRepo {
	return &SearchRepo{store: store}
}

func (r *SearchRepo) Add(ctx context.Context, rec *domain.SearchRecord) error {
	cp := *rec
	cp.Attempted = append([]string(nil), rec.Attempted...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.searches = append(r.store.searches, &cp)
	return nil
}

func (r *SearchRepo) Recent(ctx context.Context, limit int) ([]*domain.SearchRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.SearchRecord, 0, len(r.store.searches))
	for i := len(r.store.searches) - 1; i >= 0; i-- {
		cp := *r.store.searches[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SearchRepo) Summary(ctx context.Context, since time.Time) (storage.SearchSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sum storage.SearchSummary
	var timed int64
	var total time.Duration
	for _, s := range r.store.searches {
		if s.CreatedAt.Before(since) {
			continue
		}
		sum.Total++
		if s.Success {
			sum.Succeeded++
		}
		if s.Cached {
			sum.Cached++
			continue
		}
		timed++
		total += s.Duration
	}
	if timed > 0 {
		sum.AvgTime = total / time.Duration(timed)
	}
	return sum, nil
}

func (r *SearchRepo) Usage(ctx context.Context, since time.Time) ([]storage.ProviderUsage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	byName := make(map[string]*storage.ProviderUsage)
	for _, s := range r.store.searches {
		if s.CreatedAt.Before(since) {
			continue
		}
		for _, name := range s.Attempted {
			u, ok := byName[name]
			if !ok {
				u = &storage.ProviderUsage{Provider: name}
				byName[name] = u
			}
			u.Attempts++
			if s.Success && !s.Cached && s.Provider == name {
				u.Served++
			}
		}
	}

	out := make([]storage.ProviderUsage, 0, len(byName))
	for _, u := range byName {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (r *SearchRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.searches[:0]
	var n int64
	for _, s := range r.store.searches {
		if s.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	r.store.searches = kept
	return n, nil
}

// -----------------------------------------------------------------------------
// Alert Repository
// -----------------------------------------------------------------------------

type AlertRepo struct {
	store *MemoryStorage
}

var _ storage.AlertRepository = (*AlertRepo)(nil)

func NewAlertRepo(store *MemoryStorage) *AlertRepo {
	return &AlertRepo{store: store}
}

func (r *AlertRepo) Add(ctx context.Context, alert *domain.Alert) error {
	cp := *alert
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.alerts = append(r.store.alerts, &cp)
	return nil
}

func (r *AlertRepo) Recent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Alert, 0, len(r.store.alerts))
	for i := len(r.store.alerts) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *r.store.alerts[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AlertRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.alerts[:0]
	var n int64
	for _, a := range r.store.alerts {
		if a.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.store.alerts = kept
	return n, nil
}
