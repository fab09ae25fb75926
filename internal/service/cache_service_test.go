package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/pkg/cache"
)

type brokenCache struct{ memoryCache }

func (b *brokenCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection reset")
}

func TestCacheServicePrefixTTL(t *testing.T) {
	mem := newMemoryCache()
	svc := NewCacheService(mem, nil, 10*time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	dashKey := cache.Key(cache.PrefixDashboard, "admin", "2024-09-02")
	listKey := cache.Key(cache.PrefixSchedules, "list", "page=1")
	require.NoError(t, svc.Set(ctx, dashKey, map[string]int{"teachers": 2}, 0))
	require.NoError(t, svc.Set(ctx, listKey, []string{"sc-bio"}, 0))
	require.NoError(t, svc.Set(ctx, cache.Key(cache.PrefixTimetable, "student", "st1"), []string{}, 30*time.Second))

	assert.Equal(t, time.Minute, mem.ttls[dashKey])
	assert.Equal(t, 10*time.Minute, mem.ttls[listKey])
	assert.Equal(t, 30*time.Second, mem.ttls["timetable:student:st1"])

	short := NewCacheService(mem, nil, 20*time.Second, zap.NewNop(), true)
	assert.Equal(t, 20*time.Second, short.TTL(dashKey))
}

func TestCacheServiceDisabledAndFailingLookups(t *testing.T) {
	ctx := context.Background()
	var out []string

	off := NewCacheService(newMemoryCache(), nil, 0, zap.NewNop(), false)
	require.NoError(t, off.Set(ctx, "schedules:list", []string{"a"}, 0))
	hit, err := off.Get(ctx, "schedules:list", &out)
	assert.False(t, hit)
	assert.NoError(t, err)

	broken := NewCacheService(&brokenCache{memoryCache: *newMemoryCache()}, nil, 0, zap.NewNop(), true)
	hit, err = broken.Get(ctx, "schedules:list", &out)
	assert.False(t, hit)
	assert.Error(t, err)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}
