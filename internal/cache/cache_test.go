package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

// fakeKV is an in-memory KV for tests, so CacheLayer behavior can be
// verified without a live Redis instance.
type fakeKV struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	setHits map[string]int
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		values:  make(map[string]string),
		ttls:    make(map[string]time.Duration),
		setHits: make(map[string]int),
	}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.ttls[key] = ttl
	f.setHits[key]++
	return nil
}

// fakeProvider counts calls so tests can assert the cache actually avoided
// hitting it on a hit.
type fakeProvider struct {
	name domain.ServiceName

	playlistCalls int
	playlist      domain.Playlist

	trackByIDCalls int
	trackByID      domain.Track
	trackByIDErr   error

	trackByISRCCalls int
	trackByISRC      domain.Track
	trackByISRCErr   error

	searchCalls int
	searchResults []domain.Track
	searchErr     error
}

func (f *fakeProvider) Name() domain.ServiceName           { return f.name }
func (f *fakeProvider) SupportsDirectISRCQuerying() bool    { return true }
func (f *fakeProvider) SupportsMusicBrainzIDQuerying() bool { return true }
func (f *fakeProvider) GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	return nil, nil
}
func (f *fakeProvider) CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error) {
	return domain.Playlist{}, nil
}
func (f *fakeProvider) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	return nil
}
func (f *fakeProvider) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return nil, nil
}
func (f *fakeProvider) GetRandomTrack(ctx context.Context) (*domain.Track, error) { return nil, nil }
func (f *fakeProvider) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error) {
	return nil, nil
}

func (f *fakeProvider) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	f.playlistCalls++
	return f.playlist, nil
}

func (f *fakeProvider) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	f.trackByIDCalls++
	return f.trackByID, f.trackByIDErr
}

func (f *fakeProvider) GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error) {
	f.trackByISRCCalls++
	return f.trackByISRC, f.trackByISRCErr
}

func (f *fakeProvider) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	f.searchCalls++
	return f.searchResults, f.searchErr
}

func TestGetPlaylistReadThrough(t *testing.T) {
	inner := &fakeProvider{name: domain.ServiceSpotify, playlist: domain.Playlist{Name: "Road Trip", ServiceName: domain.ServiceSpotify}}
	kv := newFakeKV()
	layer := New(inner, kv)
	ctx := context.Background()

	first, err := layer.GetPlaylist(ctx, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ServiceID != "abc123" {
		t.Fatalf("expected ServiceID to be set to requested id, got %q", first.ServiceID)
	}
	if inner.playlistCalls != 1 {
		t.Fatalf("expected exactly one inner call on miss, got %d", inner.playlistCalls)
	}

	second, err := layer.GetPlaylist(ctx, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.playlistCalls != 1 {
		t.Fatalf("expected cache hit to avoid a second inner call, got %d calls", inner.playlistCalls)
	}
	if second.Name != "Road Trip" {
		t.Fatalf("expected cached playlist name, got %q", second.Name)
	}

	key := layer.playlistKey("abc123")
	if kv.ttls[key] != ttlPlaylist {
		t.Fatalf("expected playlist TTL of %v, got %v", ttlPlaylist, kv.ttls[key])
	}
}

func TestGetTrackByISRCReadThroughAndCrossPopulatesIDIndex(t *testing.T) {
	inner := &fakeProvider{
		name: domain.ServiceSpotify,
		trackByISRC: domain.Track{
			Title: "Everlong", PrimaryArtist: "Foo Fighters",
			ISRC: "USRC17607839", ServiceID: "spotify-track-1", ServiceName: domain.ServiceSpotify,
		},
	}
	kv := newFakeKV()
	layer := New(inner, kv)
	ctx := context.Background()

	_, err := layer.GetTrackByISRC(ctx, "USRC17607839")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.trackByISRCCalls != 1 {
		t.Fatalf("expected one inner call, got %d", inner.trackByISRCCalls)
	}

	// a later GetTrack by the same provider id should now hit the
	// cross-populated id index without touching the provider.
	track, err := layer.GetTrack(ctx, "spotify-track-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.trackByIDCalls != 0 {
		t.Fatalf("expected GetTrack to be served from the ISRC-populated id index, got %d provider calls", inner.trackByIDCalls)
	}
	if track.Title != "Everlong" || track.ServiceID != "spotify-track-1" {
		t.Fatalf("unexpected reconstructed track: %+v", track)
	}

	// TTL for persistent entries must be unbounded (zero).
	key := layer.trackByISRCKey("USRC17607839")
	if kv.ttls[key] != 0 {
		t.Fatalf("expected persistent TTL of 0 (no expiration), got %v", kv.ttls[key])
	}
}

func TestGetTrackByISRCNegativeResultNotCached(t *testing.T) {
	inner := &fakeProvider{name: domain.ServiceSpotify, trackByISRCErr: domain.ErrTrackNotFound}
	kv := newFakeKV()
	layer := New(inner, kv)
	ctx := context.Background()

	_, err := layer.GetTrackByISRC(ctx, "UNKNOWN000000")
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if len(kv.values) != 0 {
		t.Fatalf("expected nothing written to the cache on a negative result, got %v", kv.values)
	}

	// a second call must hit the provider again, proving the miss wasn't cached.
	_, _ = layer.GetTrackByISRC(ctx, "UNKNOWN000000")
	if inner.trackByISRCCalls != 2 {
		t.Fatalf("expected negative result to bypass the cache on every call, got %d provider calls", inner.trackByISRCCalls)
	}
}

func TestSearchTracksReadThroughAndKeyNormalization(t *testing.T) {
	inner := &fakeProvider{
		name: domain.ServiceSpotify,
		searchResults: []domain.Track{{Title: "Everlong", PrimaryArtist: "Foo Fighters", ServiceName: domain.ServiceSpotify}},
	}
	kv := newFakeKV()
	layer := New(inner, kv)
	ctx := context.Background()

	if _, err := layer.SearchTracks(ctx, "  Foo Fighters - Everlong!!  ", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.searchCalls != 1 {
		t.Fatalf("expected one inner call on miss, got %d", inner.searchCalls)
	}

	if _, err := layer.SearchTracks(ctx, "foo fighters - everlong!!", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.searchCalls != 1 {
		t.Fatalf("expected differently-cased/punctuated query to hit the same normalized key, got %d calls", inner.searchCalls)
	}

	key := layer.searchKey("  Foo Fighters - Everlong!!  ", 5)
	if kv.ttls[key] != ttlSearch {
		t.Fatalf("expected search TTL of %v, got %v", ttlSearch, kv.ttls[key])
	}
}

func TestSearchTracksEmptyResultNotCached(t *testing.T) {
	inner := &fakeProvider{name: domain.ServiceSpotify, searchResults: nil}
	kv := newFakeKV()
	layer := New(inner, kv)
	ctx := context.Background()

	if _, err := layer.SearchTracks(ctx, "nothing matches this", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kv.values) != 0 {
		t.Fatalf("expected zero-hit search results to not be cached, got %v", kv.values)
	}

	if _, err := layer.SearchTracks(ctx, "nothing matches this", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.searchCalls != 2 {
		t.Fatalf("expected empty results to bypass the cache on every call, got %d provider calls", inner.searchCalls)
	}
}

func TestNormalizeQueryKey(t *testing.T) {
	cases := map[string]string{
		"Foo Fighters - Everlong!!": "foo_fighters__everlong",
		"  spaced   out  ":          "spaced_out",
		"":                          "",
	}
	for in, want := range cases {
		if got := normalizeQueryKey(in); got != want {
			t.Fatalf("normalizeQueryKey(%q) = %q, want %q", in, got, want)
		}
	}
}
