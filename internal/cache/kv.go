package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrMiss is returned by KV.Get when the key doesn't exist.
var ErrMiss = errors.New("cache: key not found")

// KV is the minimal key/value surface the cache layer needs. It is
// satisfied by a thin adapter over *redis.Client in production and by an
// in-memory fake in tests, so CacheLayer never depends on a live Redis.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. ttl == 0 means no expiration (used for
	// the persistent identity caches; spec.md §4.4 "unbounded until
	// evicted").
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}
