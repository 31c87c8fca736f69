package cache

import (
	"context"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

// CachingFactory decorates a ports.DriverFactory so every driver it hands
// out is wrapped in a read-through Layer before the caller (the matcher,
// the transfer handler) ever sees it. This is the seam spec.md §2's data
// flow describes: "[searches] flow through the CacheLayer" for every
// provider call a transfer makes, not just the target provider's.
type CachingFactory struct {
	inner ports.DriverFactory
	kv    KV
}

// NewCachingFactory wraps inner so every built driver is cached through kv.
func NewCachingFactory(inner ports.DriverFactory, kv KV) *CachingFactory {
	return &CachingFactory{inner: inner, kv: kv}
}

var _ ports.DriverFactory = (*CachingFactory)(nil)

func (f *CachingFactory) Build(ctx context.Context, userID string, provider domain.ServiceName) (ports.ProviderPort, error) {
	driver, err := f.inner.Build(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	return New(driver, f.kv), nil
}
