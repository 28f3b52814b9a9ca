package attrs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const transformKeyPrefix = "transform:"

// redisClient is the subset of *redis.Client the transform cache needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTransformCache keeps transform outputs in Redis under
// "transform:<id>". Redis expiry mirrors the entry ttl.
type RedisTransformCache struct {
	client redisClient
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisTransformCache wraps an existing client.
func NewRedisTransformCache(client redisClient, logger *slog.Logger) *RedisTransformCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTransformCache{
		client: client,
		logger: logger.With("component", "transform_cache"),
		now:    time.Now,
	}
}

// NewRedisTransformCacheFromConfig dials Redis and checks the connection.
func NewRedisTransformCacheFromConfig(ctx context.Context, cfg CacheConfig, logger *slog.Logger) (*RedisTransformCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return NewRedisTransformCache(client, logger), nil
}

func (c *RedisTransformCache) Lookup(ctx context.Context, entry *TransformCacheEntry) (map[string]any, error) {
	id, err := entry.ID()
	if err != nil {
		return nil, err
	}
	key := transformKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var cached TransformCacheEntry
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.Warn("dropping corrupted cache entry", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, ErrCacheMiss
	}
	if cached.Expired(c.now()) {
		_ = c.client.Del(ctx, key).Err()
		return nil, ErrCacheMiss
	}
	c.logger.Debug("cache hit", "key", key, "kind", cached.Kind)
	return cached.Output, nil
}

func (c *RedisTransformCache) Store(ctx context.Context, entry *TransformCacheEntry) error {
	id, err := entry.ID()
	if err != nil {
		return err
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	key := transformKeyPrefix + id
	if err := c.client.Set(ctx, key, b, entry.Remaining(c.now())).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
