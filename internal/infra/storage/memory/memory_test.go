package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/storage"
)

func TestSearchRepo_UsageAndSummary(t *testing.T) {
	ctx := context.Background()
	repo := NewSearchRepo(NewMemoryStorage())
	now := time.Now()

	records := []*domain.SearchRecord{
		{ID: "1", Query: "a", Provider: "serper", Attempted: []string{"serper"}, Success: true, Duration: 100 * time.Millisecond, CreatedAt: now},
		{ID: "2", Query: "b", Provider: "serpapi", Attempted: []string{"serper", "serpapi"}, Success: true, Duration: 300 * time.Millisecond, CreatedAt: now},
		{ID: "3", Query: "c", Attempted: []string{"serper", "serpapi"}, Error: "boom", CreatedAt: now},
		{ID: "4", Query: "a", Provider: "serper", Success: true, Cached: true, CreatedAt: now},
		{ID: "5", Query: "old", Provider: "serper", Attempted: []string{"serper"}, Success: true, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, r := range records {
		require.NoError(t, repo.Add(ctx, r))
	}

	usage, err := repo.Usage(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []storage.ProviderUsage{
		{Provider: "serpapi", Attempts: 2, Served: 1},
		{Provider: "serper", Attempts: 3, Served: 1},
	}, usage)
	assert.Equal(t, int64(2), usage[1].Failed())

	sum, err := repo.Summary(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Total)
	assert.Equal(t, int64(3), sum.Succeeded)
	assert.Equal(t, int64(1), sum.Cached)
	assert.Equal(t, 400*time.Millisecond/3, sum.AvgTime)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "4", recent[0].ID, "newest first, ties in insertion order reversed")
	assert.Equal(t, "3", recent[1].ID)
}

func TestSearchRepo_AddCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewSearchRepo(NewMemoryStorage())

	rec := &domain.SearchRecord{ID: "1", Attempted: []string{"serper"}}
	require.NoError(t, repo.Add(ctx, rec))
	rec.Attempted[0] = "mutated"

	recent, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"serper"}, recent[0].Attempted)
	assert.False(t, recent[0].CreatedAt.IsZero())
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	searches, alerts := NewSearchRepo(store), NewAlertRepo(store)
	now := time.Now()

	require.NoError(t, searches.Add(ctx, &domain.SearchRecord{ID: "old", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, searches.Add(ctx, &domain.SearchRecord{ID: "new", CreatedAt: now}))
	require.NoError(t, alerts.Add(ctx, &domain.Alert{ID: "old", CreatedAt: now.Add(-2 * time.Hour)}))

	n, err := searches.DeleteOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = alerts.DeleteOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, _ := searches.Recent(ctx, 0)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
	remaining, _ := alerts.Recent(ctx, 0)
	assert.Empty(t, remaining)
}

func TestResponseCache(t *testing.T) {
	ctx := context.Background()
	cache := NewResponseCache(time.Minute)

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	resp := &domain.SearchResponse{Query: "go", Provider: "serper", Results: []domain.SearchResult{{Title: "Go", Position: 1}}}
	require.NoError(t, cache.Set(ctx, "k", resp, time.Minute))
	resp.Results[0].Title = "mutated"

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Go", got.Results[0].Title)

	got.Cached = true
	got.Results[0].Title = "changed by caller"
	again, _, _ := cache.Get(ctx, "k")
	assert.False(t, again.Cached)
	assert.Equal(t, "Go", again.Results[0].Title)
	assert.Equal(t, 1, cache.Len())
}

func TestResponseCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewResponseCache(time.Minute)
	require.NoError(t, cache.Set(ctx, "k", &domain.SearchResponse{Query: "go"}, time.Millisecond))

	time.Sleep(5 * time.Millisecond)
	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
