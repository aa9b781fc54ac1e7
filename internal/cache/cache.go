package cache

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/vogaflex/crm-insights/internal/models"
)

// Cache stores JSON-serializable values under string keys with a TTL.
// Get reports false on a miss; only transport or decode failures are errors.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Close() error
}

// DashboardKey is the cache key of a dashboard request.
func DashboardKey(q models.DashboardQuery) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(q.CacheKey()))
	return "dashboard:" + strconv.FormatUint(h.Sum64(), 16)
}
