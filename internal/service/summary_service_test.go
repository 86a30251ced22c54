package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type memoryCache struct {
	entries map[string][]byte
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.entries, key)
		m.deletes = append(m.deletes, key)
	}
	return nil
}

type countingStore struct {
	calls int
}

func (c *countingStore) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	c.calls++
	return []models.StatusCount{{Status: "pending", Total: 4}, {Status: "approved", Total: 2}}, nil
}

func (c *countingStore) CountSubmitted(ctx context.Context) (int, error) {
	return 5, nil
}

func (c *countingStore) Counts(ctx context.Context) (int, int, error) {
	return 3, 97, nil
}

func TestSummaryServiceCachesUntilInvalidated(t *testing.T) {
	store := &countingStore{}
	cacheRepo := newMemoryCache()
	cacheSvc := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, nil, true)
	svc := NewSummaryService(store, store, store, cacheSvc, time.Minute, nil)

	first, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, first.Applications["pending"])
	assert.Equal(t, 0, first.Applications["rejected"])
	assert.Equal(t, 5, first.SubmittedCount)
	assert.Equal(t, 3, first.ReferralCodesUsed)
	assert.Equal(t, 97, first.ReferralCodesAvail)
	assert.Equal(t, 2, store.calls)

	_, hit, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, store.calls)

	require.NoError(t, cacheSvc.Invalidate(context.Background(), SummaryCacheKey))
	_, hit, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, store.calls)
	assert.Equal(t, []string{"admission:admin:summary"}, cacheRepo.deletes)
}

func TestSummaryServiceWithoutCache(t *testing.T) {
	store := &countingStore{}
	svc := NewSummaryService(store, store, store, nil, time.Minute, nil)

	_, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	_, _, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, store.calls)
}
