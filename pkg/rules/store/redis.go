package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/mailrules/pkg/rules"
)

// RedisConfig configures the Redis category cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL is the entry lifetime. Default: 5 minutes
	TTL time.Duration

	// Prefix namespaces the keys. Default: "mailrules:cat"
	Prefix string
}

// RedisCategoryCache is a CategoryCache shared between processes. Each user's
// entries live in one hash so Invalidate is a single DEL.
type RedisCategoryCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// noCategory marks a cached "sender has no category" result.
const noCategory = "-"

// NewRedisCategoryCache creates a client for cfg.
func NewRedisCategoryCache(cfg RedisConfig) *RedisCategoryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisCategoryCacheWithClient(client, cfg.TTL, cfg.Prefix)
}

// NewRedisCategoryCacheWithClient uses an existing client.
func NewRedisCategoryCacheWithClient(client *redis.Client, ttl time.Duration, prefix string) *RedisCategoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "mailrules:cat"
	}
	return &RedisCategoryCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *RedisCategoryCache) key(userID string) string {
	return c.prefix + ":" + userID
}

// Ping checks connectivity.
func (c *RedisCategoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get implements CategoryCache.
func (c *RedisCategoryCache) Get(ctx context.Context, userID, sender string) (*rules.Category, bool, error) {
	val, err := c.client.HGet(ctx, c.key(userID), sender).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	if val == noCategory {
		return nil, true, nil
	}

	var cat rules.Category
	if err := json.Unmarshal([]byte(val), &cat); err != nil {
		return nil, false, fmt.Errorf("redis decode: %w", err)
	}
	return &cat, true, nil
}

// Set implements CategoryCache. The hash TTL is refreshed on every write.
func (c *RedisCategoryCache) Set(ctx context.Context, userID, sender string, cat *rules.Category) error {
	val := noCategory
	if cat != nil {
		data, err := json.Marshal(cat)
		if err != nil {
			return fmt.Errorf("redis encode: %w", err)
		}
		val = string(data)
	}

	key := c.key(userID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, sender, val)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate implements CategoryCache.
func (c *RedisCategoryCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *RedisCategoryCache) Close() error {
	return c.client.Close()
}
