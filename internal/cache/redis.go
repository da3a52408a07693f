package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache mirrors entities into Redis with a fixed TTL per entry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) bool {
	return c.client.Set(ctx, key, value, c.ttl).Err() == nil
}

func (c *RedisCache) Update(ctx context.Context, key, value string) bool {
	ok, err := c.client.SetXX(ctx, key, value, c.ttl).Result()
	return err == nil && ok
}

func (c *RedisCache) Remove(ctx context.Context, key string) bool {
	return c.client.Del(ctx, key).Err() == nil
}

// RemoveStartingWith walks the keyspace with SCAN so large prefixes do not
// block the server the way KEYS would.
func (c *RedisCache) RemoveStartingWith(ctx context.Context, prefix string) bool {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return false
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return false
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err() == nil
	}
	return true
}

func (c *RedisCache) Incr(ctx context.Context, key string) bool {
	return c.client.Incr(ctx, key).Err() == nil
}

func (c *RedisCache) Decr(ctx context.Context, key string) bool {
	return c.client.Decr(ctx, key).Err() == nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
