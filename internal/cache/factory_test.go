package cache

import (
	"context"
	"testing"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

// stubFactory is a minimal ports.DriverFactory for testing CachingFactory.
type stubFactory struct {
	driver ports.ProviderPort
	err    error
}

func (f *stubFactory) Build(ctx context.Context, userID string, provider domain.ServiceName) (ports.ProviderPort, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.driver, nil
}

func TestCachingFactory_WrapsBuiltDriver(t *testing.T) {
	inner := &fakeProvider{name: domain.ServiceSpotify, playlist: domain.Playlist{Name: "Road Trip", ServiceName: domain.ServiceSpotify}}
	underlying := &stubFactory{driver: inner}
	kv := newFakeKV()

	factory := NewCachingFactory(underlying, kv)

	driver, err := factory.Build(context.Background(), "user-1", domain.ServiceSpotify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := driver.(*Layer); !ok {
		t.Fatalf("expected CachingFactory to return a *Layer, got %T", driver)
	}

	first, err := driver.GetPlaylist(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Name != "Road Trip" {
		t.Fatalf("expected wrapped driver's data, got %q", first.Name)
	}

	_, _ = driver.GetPlaylist(context.Background(), "abc")
	if inner.playlistCalls != 1 {
		t.Fatalf("expected the cache wrapper to dedupe the second call, got %d inner calls", inner.playlistCalls)
	}
}

func TestCachingFactory_PropagatesBuildError(t *testing.T) {
	underlying := &stubFactory{err: domain.NewError(domain.KindAuthError, "no credential")}
	factory := NewCachingFactory(underlying, newFakeKV())

	_, err := factory.Build(context.Background(), "user-1", domain.ServiceSpotify)
	if err == nil {
		t.Fatal("expected build error to propagate")
	}
}
