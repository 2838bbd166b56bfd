package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"promptguy/internal/middleware"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	PostKeyPrefix = "post:%d"
	PostTTL       = 30 * time.Minute
)

var group singleflight.Group

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// GetJSON reads key into dest. It reports false on a miss or when Redis is not configured.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key with ttl.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from Redis, or on a miss calls fetch (which must populate dest)
// and stores the result with ttl. Concurrent misses on the same key share a single
// fetch. Cache failures fall through to fetch and are only logged.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		return nil
	}

	leader := false
	v, err, _ := group.Do(key, func() (interface{}, error) {
		leader = true
		if err := fetch(); err != nil {
			return nil, err
		}
		b, err := json.Marshal(dest)
		if err != nil {
			return nil, err
		}
		if client != nil {
			if err := client.Set(ctx, key, b, ttl).Err(); err != nil {
				middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	if leader {
		return nil
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Invalidate deletes key. It is a no-op without Redis.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
