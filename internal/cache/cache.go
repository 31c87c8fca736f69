// Package cache implements the read-through CacheLayer described in
// spec.md §4.4: a two-tier cache (hot KV for playlists/searches, persistent
// KV for track identity) that stabilizes matching cost and rate-limit
// footprint for anything wrapping a ports.ProviderPort.
package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

const (
	ttlPlaylist = 5 * time.Minute
	ttlSearch   = time.Hour
)

// Layer wraps a ports.ProviderPort with read-through caching. It implements
// ports.ProviderPort itself so it's a drop-in substitute anywhere the
// wrapped provider would be used.
type Layer struct {
	inner ports.ProviderPort
	kv    KV
}

// New wraps inner with a read-through cache backed by kv.
func New(inner ports.ProviderPort, kv KV) *Layer {
	return &Layer{inner: inner, kv: kv}
}

func (l *Layer) Name() domain.ServiceName                  { return l.inner.Name() }
func (l *Layer) SupportsDirectISRCQuerying() bool           { return l.inner.SupportsDirectISRCQuerying() }
func (l *Layer) SupportsMusicBrainzIDQuerying() bool        { return l.inner.SupportsMusicBrainzIDQuerying() }
func (l *Layer) GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	return l.inner.GetUserPlaylists(ctx, limit)
}
func (l *Layer) CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error) {
	return l.inner.CreatePlaylist(ctx, name)
}
func (l *Layer) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	return l.inner.AddTracksToPlaylist(ctx, playlistID, trackIDs)
}
func (l *Layer) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return l.inner.GetSavedTracks(ctx, limit)
}
func (l *Layer) GetRandomTrack(ctx context.Context) (*domain.Track, error) {
	return l.inner.GetRandomTrack(ctx)
}
func (l *Layer) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error) {
	return l.inner.GetPlaylistTracks(ctx, id, limit)
}

// GetPlaylist is read-through cached in the hot tier, keyed bit-exactly per
// spec.md §6: provider_cache:{provider}:playlists:playlist_id#{id}.
func (l *Layer) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	key := l.playlistKey(id)

	if raw, err := l.kv.Get(ctx, key); err == nil {
		var pl domain.Playlist
		if jsonErr := json.Unmarshal([]byte(raw), &pl); jsonErr == nil {
			pl.ServiceID = id
			return pl, nil
		}
	}

	pl, err := l.inner.GetPlaylist(ctx, id)
	if err != nil {
		return domain.Playlist{}, err
	}
	pl.ServiceID = id

	if raw, jsonErr := json.Marshal(pl); jsonErr == nil {
		_ = l.kv.Set(ctx, key, string(raw), ttlPlaylist)
	}
	return pl, nil
}

// GetTrack is read-through cached in the persistent tier, keyed by
// (provider, provider_track_id). On a hit the reconstructed Track's
// ServiceID is forced to equal id, so downstream identity checks hold.
func (l *Layer) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	key := l.trackByIDKey(id)

	if cached, ok := l.cachedTrackFrom(ctx, key); ok {
		return cached.ToTrack(l.Name(), id), nil
	}

	track, err := l.inner.GetTrack(ctx, id)
	if err != nil {
		return domain.Track{}, err
	}
	l.storeCachedTrack(ctx, key, track)
	if track.ISRC != "" {
		l.storeCachedTrack(ctx, l.trackByISRCKey(track.ISRC), track)
	}
	return track, nil
}

// GetTrackByISRC consults the (provider, isrc) index before hitting the
// network, per spec.md §3's cache invariant.
func (l *Layer) GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error) {
	key := l.trackByISRCKey(isrc)

	if cached, ok := l.cachedTrackFrom(ctx, key); ok {
		return cached.ToTrack(l.Name(), cached.ID), nil
	}

	track, err := l.inner.GetTrackByISRC(ctx, isrc)
	if err != nil {
		// Negative results (not-found, unsupported) are never cached —
		// see spec.md §9: this must not be "fixed" silently, it's load
		// bearing for rate-limit behavior.
		return domain.Track{}, err
	}
	l.storeCachedTrack(ctx, key, track)
	l.storeCachedTrack(ctx, l.trackByIDKey(track.ServiceID), track)
	return track, nil
}

// SearchTracks is read-through cached in the hot tier for exactly one
// hour, keyed by normalized query + limit. Negative results (zero hits)
// are never cached.
func (l *Layer) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	key := l.searchKey(query, limit)

	if raw, err := l.kv.Get(ctx, key); err == nil {
		var tracks []domain.Track
		if jsonErr := json.Unmarshal([]byte(raw), &tracks); jsonErr == nil {
			return tracks, nil
		}
	}

	tracks, err := l.inner.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return tracks, nil
	}

	if raw, jsonErr := json.Marshal(tracks); jsonErr == nil {
		_ = l.kv.Set(ctx, key, string(raw), ttlSearch)
	}
	return tracks, nil
}

// -- key construction ---------------------------------------------------

func (l *Layer) playlistKey(id string) string {
	return "provider_cache:" + string(l.Name()) + ":playlists:playlist_id#" + id
}

func (l *Layer) trackByIDKey(id string) string {
	return "provider_cache:" + string(l.Name()) + ":tracks:id#" + id
}

func (l *Layer) trackByISRCKey(isrc string) string {
	return "provider_cache:" + string(l.Name()) + ":tracks:isrc#" + isrc
}

func (l *Layer) searchKey(query string, limit int) string {
	return "provider_cache:" + string(l.Name()) + ":search_results:query#" +
		normalizeQueryKey(query) + ":limit#" + strconv.Itoa(limit)
}

var nonWordOrUnderscore = regexp.MustCompile(`[^\w_]+`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeQueryKey implements the hot-KV query normalization from
// spec.md §4.4: lowercase, collapse whitespace to "_", strip anything
// non-word/underscore.
func normalizeQueryKey(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	collapsed := whitespaceRun.ReplaceAllString(lowered, "_")
	return nonWordOrUnderscore.ReplaceAllString(collapsed, "")
}

// -- persistent CachedTrack helpers --------------------------------------

func (l *Layer) cachedTrackFrom(ctx context.Context, key string) (domain.CachedTrack, bool) {
	raw, err := l.kv.Get(ctx, key)
	if err != nil {
		return domain.CachedTrack{}, false
	}
	var ct domain.CachedTrack
	if err := json.Unmarshal([]byte(raw), &ct); err != nil {
		return domain.CachedTrack{}, false
	}
	return ct, true
}

func (l *Layer) storeCachedTrack(ctx context.Context, key string, track domain.Track) {
	ct := domain.FromTrack(track)
	ct.ID = track.ServiceID
	if raw, err := json.Marshal(ct); err == nil {
		_ = l.kv.Set(ctx, key, string(raw), 0)
	}
}

var _ ports.ProviderPort = (*Layer)(nil)

// GetTrackAssets forwards to the wrapped driver's AssetResolver, if it has
// one. Asset resolution is display metadata, not matching-critical, so it
// is deliberately not cached here (spec_full.md "Supplemented features").
func (l *Layer) GetTrackAssets(ctx context.Context, track domain.Track) (domain.Assets, error) {
	resolver, ok := l.inner.(ports.AssetResolver)
	if !ok {
		return domain.Assets{}, domain.NewError(domain.KindUnsupportedFeature, string(l.Name())+" does not support asset resolution")
	}
	return resolver.GetTrackAssets(ctx, track)
}

var _ ports.AssetResolver = (*Layer)(nil)
