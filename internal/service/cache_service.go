package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/pkg/cache"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Dashboards carry attendance counts that change without a scheduling write,
// so they never live longer than this.
const dashboardCacheTTL = time.Minute

// schedulingPrefixes are the read models derived from schedules and enrollments.
var schedulingPrefixes = []string{cache.PrefixSchedules, cache.PrefixTimetable, cache.PrefixDashboard}

// CacheService caches schedule listings, timetables and dashboards. Conflict
// checks never read from it.
type CacheService struct {
	repo     CacheRepository
	metrics  *MetricsService
	fallback time.Duration
	ttls     map[string]time.Duration
	logger   *zap.Logger
	enabled  bool
}

// NewCacheService constructs a cache service. defaultTTL applies to every
// prefix without its own limit.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dashboardTTL := dashboardCacheTTL
	if defaultTTL < dashboardTTL {
		dashboardTTL = defaultTTL
	}
	return &CacheService{
		repo:     repo,
		metrics:  metrics,
		fallback: defaultTTL,
		ttls:     map[string]time.Duration{cache.PrefixDashboard: dashboardTTL},
		logger:   logger,
		enabled:  enabled,
	}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// TTL returns the lifetime used for key when the caller passes none.
func (s *CacheService) TTL(key string) time.Duration {
	prefix, _, _ := strings.Cut(key, ":")
	if ttl, ok := s.ttls[prefix]; ok {
		return ttl
	}
	return s.fallback
}

// Get decodes the entry at key into dest and reports a hit. Lookup failures
// other than a miss are logged and returned, dest is left untouched.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value at key. A non-positive ttl uses the key's prefix lifetime.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.TTL(key)
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateScheduling drops every cached schedule listing, timetable and
// dashboard. Failures are logged; a stale entry expires with its TTL.
func (s *CacheService) InvalidateScheduling(ctx context.Context) {
	for _, prefix := range schedulingPrefixes {
		_ = s.Invalidate(ctx, cache.Pattern(prefix))
	}
}
