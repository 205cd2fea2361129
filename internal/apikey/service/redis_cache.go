package service

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisKeyCache adapts a Redis client to the resolver's cache contract.
// A missing key reads as empty rather than an error so the resolver
// falls through to the management API.
type RedisKeyCache struct {
	client *redis.Client
}

func NewRedisKeyCache(client *redis.Client) *RedisKeyCache {
	return &RedisKeyCache{client: client}
}

func (c *RedisKeyCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (c *RedisKeyCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
