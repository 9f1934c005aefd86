package config

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects the optional read cache. Returns nil when no address
// is configured; callers treat a nil client as "cache disabled".
func NewRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	val := cfg.RedisAddr
	if val == "" {
		return nil, nil
	}

	var client *redis.Client
	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		opt, err := redis.ParseURL(val)
		if err != nil {
			return nil, err
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: val})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
