package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV adapts a *redis.Client to the KV interface this package depends
// on.
type RedisKV struct {
	Client *redis.Client
}

// NewRedisKV wraps an existing go-redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{Client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}
