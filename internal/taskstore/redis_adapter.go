package taskstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter adapts a *redis.Client to the redisCommands interface this
// package depends on.
type RedisAdapter struct {
	Client *redis.Client
}

// NewRedisAdapter wraps an existing go-redis client.
func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{Client: client}
}

func (r *RedisAdapter) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}

func (r *RedisAdapter) RPush(ctx context.Context, list, value string) error {
	return r.Client.RPush(ctx, list, value).Err()
}

func (r *RedisAdapter) BLPop(ctx context.Context, list string, timeout time.Duration) (string, bool, error) {
	result, err := r.Client.BLPop(ctx, timeout, list).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BLPop returns [list, value]; we only care about the popped value.
	if len(result) != 2 {
		return "", false, nil
	}
	return result[1], true, nil
}

func (r *RedisAdapter) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.Client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
