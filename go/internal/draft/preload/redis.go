package preload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache shared between processes. Values are stored as JSON
// and expiry is left to Redis, so Sweep has nothing to do.
type RedisCache[V any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedisCache[V any](client redis.UniversalClient, namespace string, ttl time.Duration) *RedisCache[V] {
	return &RedisCache[V]{client: client, namespace: namespace, ttl: ttl}
}

func (c *RedisCache[V]) key(k string) string {
	return c.namespace + ":" + k
}

func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, true, nil
}

func (c *RedisCache[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache[V]) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del %s: %w", prefix, err)
	}
	return int(n), nil
}

func (c *RedisCache[V]) Sweep(context.Context) (int, error) {
	return 0, nil
}
