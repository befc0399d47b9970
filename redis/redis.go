// Package redis holds the optional Redis-backed pieces of the engine: the
// scheduler tick lease and the round snapshot cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by GetKey when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// RedisService represents the Redis service
type RedisService struct {
	client *goredis.Client
}

// NewRedisService connects to Redis and pings it.
func NewRedisService(ctx context.Context, addr, password string) (*RedisService, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisService{client: client}, nil
}

// SetKey sets a key-value pair in Redis
func (r *RedisService) SetKey(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// GetKey retrieves the value of a key from Redis
func (r *RedisService) GetKey(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// DeleteKey removes a key from Redis
func (r *RedisService) DeleteKey(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (r *RedisService) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd {
	return r.client.Eval(ctx, script, keys, args...)
}

func (r *RedisService) Close() error {
	return r.client.Close()
}
