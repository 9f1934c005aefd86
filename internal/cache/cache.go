package cache

import (
	"context"
	"time"
)

// Cache fronts the latest-recordings read path. Implementations must treat
// corrupt entries as misses.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// LatestKey names the cached latest-recordings result for one tenant and
// filter variant.
func LatestKey(identifier string, evaluatedOnly bool) string {
	key := "paramount:latest:" + identifier
	if evaluatedOnly {
		return key + ":evaluated"
	}
	return key + ":all"
}
