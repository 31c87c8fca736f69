package credentials

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

// fakeKV is a minimal in-memory kv, enough to exercise Store's logic
// without a live Redis instance.
type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func TestStore_SaveThenGet(t *testing.T) {
	store := New(newFakeKV())
	cred := ports.Credential{AccessToken: "access", RefreshToken: "refresh", ExpiresAtUTC: 1234}

	if err := store.Save(context.Background(), "user-1", domain.ServiceSpotify, cred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(context.Background(), "user-1", domain.ServiceSpotify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cred {
		t.Fatalf("expected %+v, got %+v", cred, got)
	}
}

func TestStore_GetMissingIsAuthError(t *testing.T) {
	store := New(newFakeKV())

	_, err := store.Get(context.Background(), "user-1", domain.ServiceSpotify)
	if err == nil {
		t.Fatal("expected error for missing credential")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindAuthError {
		t.Fatalf("expected KindAuthError, got %v (ok=%v)", kind, ok)
	}
}

func TestStore_DeleteRemovesCredential(t *testing.T) {
	store := New(newFakeKV())
	cred := ports.Credential{AccessToken: "access"}
	if err := store.Save(context.Background(), "user-1", domain.ServiceSpotify, cred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Delete(context.Background(), "user-1", domain.ServiceSpotify); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := store.Get(context.Background(), "user-1", domain.ServiceSpotify)
	if err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestStore_KeysAreScopedByUserAndProvider(t *testing.T) {
	store := New(newFakeKV())
	spotifyCred := ports.Credential{AccessToken: "spotify-token"}
	youtubeCred := ports.Credential{AccessToken: "youtube-token"}

	if err := store.Save(context.Background(), "user-1", domain.ServiceSpotify, spotifyCred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Save(context.Background(), "user-1", domain.ServiceYouTube, youtubeCred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(context.Background(), "user-1", domain.ServiceSpotify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != spotifyCred {
		t.Fatalf("expected spotify credential untouched by youtube save, got %+v", got)
	}
}
