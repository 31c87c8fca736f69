// Package spotify implements ports.ProviderPort against the real Spotify
// Web API, grounded on osa030-19box's internal/infra/spotify client: a
// *spotify.Client built from an authenticated *http.Client, with the same
// retry-on-transient-error wrapper around every call except the
// current-user lookup in CreatePlaylist.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

// Driver implements ports.ProviderPort and ports.AssetResolver against the
// Spotify Web API. httpClient is expected to already carry OAuth2
// credentials (see internal/credentials), so this package knows nothing
// about token storage or refresh.
type Driver struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// New builds a Driver over an already-authenticated httpClient.
func New(httpClient *http.Client, market string) *Driver {
	if market == "" {
		market = "US"
	}
	return &Driver{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

var _ ports.ProviderPort = (*Driver)(nil)
var _ ports.AssetResolver = (*Driver)(nil)

func (d *Driver) Name() domain.ServiceName { return domain.ServiceSpotify }

// SupportsDirectISRCQuerying is true: GetTrackByISRC is implemented via a
// `isrc:` search filter, Spotify's documented way of finding a track by
// ISRC (there is no dedicated lookup-by-ISRC endpoint).
func (d *Driver) SupportsDirectISRCQuerying() bool { return true }

// SupportsMusicBrainzIDQuerying is false: Spotify's search has no facility
// for matching an external identifier it doesn't itself assign.
func (d *Driver) SupportsMusicBrainzIDQuerying() bool { return false }

func (d *Driver) GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	pageLimit := 50
	var out []domain.Playlist
	offset := 0

	for {
		var page *spotify.SimplePlaylistPage
		err := d.retry(func() error {
			p, err := d.client.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit), spotify.Offset(offset))
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: get user playlists"))
		}

		for _, p := range page.Playlists {
			out = append(out, domain.Playlist{
				Name:        p.Name,
				IsPublic:    p.IsPublic,
				AuthorName:  p.Owner.DisplayName,
				ServiceID:   string(p.ID),
				ServiceName: domain.ServiceSpotify,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if len(page.Playlists) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return out, nil
}

func (d *Driver) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	var full *spotify.FullPlaylist
	err := d.retry(func() error {
		p, err := d.client.GetPlaylist(ctx, spotify.ID(id))
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Playlist{}, domain.WithKind(domain.KindPlaylistNotFound, err)
		}
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: get playlist"))
	}

	return domain.Playlist{
		Name:        full.Name,
		Description: full.Description,
		IsPublic:    full.IsPublic,
		AuthorName:  full.Owner.DisplayName,
		ServiceID:   string(full.ID),
		ServiceName: domain.ServiceSpotify,
	}, nil
}

func (d *Driver) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error) {
	pageLimit := 100
	var out []domain.Track
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := d.retry(func() error {
			p, err := d.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(pageLimit), spotify.Offset(offset), spotify.Market(d.market))
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			if isNotFound(err) {
				return nil, domain.WithKind(domain.KindPlaylistNotFound, err)
			}
			return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: get playlist tracks"))
		}

		for _, item := range page.Items {
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			out = append(out, d.mapTrack(item.Track.Track))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if len(page.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return out, nil
}

func (d *Driver) CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error) {
	user, err := d.client.CurrentUser(ctx)
	if err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: get current user"))
	}

	var full *spotify.FullPlaylist
	err = d.retry(func() error {
		p, err := d.client.CreatePlaylistForUser(ctx, user.ID, name, "", false, false)
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: create playlist"))
	}

	return domain.Playlist{
		Name: full.Name, ServiceID: string(full.ID), ServiceName: domain.ServiceSpotify,
	}, nil
}

func (d *Driver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for i := 0; i < len(ids); i += 100 {
		end := i + 100
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		err := d.retry(func() error {
			_, err := d.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...)
			return err
		})
		if err != nil {
			if isNotFound(err) {
				return domain.WithKind(domain.KindPlaylistNotFound, err)
			}
			return domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: add tracks to playlist"))
		}
	}

	return nil
}

func (d *Driver) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	var full *spotify.FullTrack
	err := d.retry(func() error {
		t, err := d.client.GetTrack(ctx, spotify.ID(id), spotify.Market(d.market))
		if err != nil {
			return err
		}
		full = t
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Track{}, domain.WithKind(domain.KindTrackNotFound, err)
		}
		return domain.Track{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: get track"))
	}
	return d.mapTrack(full), nil
}

func (d *Driver) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	var result *spotify.SearchResult
	err := d.retry(func() error {
		r, err := d.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit), spotify.Market(d.market))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: search tracks"))
	}
	if result.Tracks == nil {
		return nil, nil
	}

	out := make([]domain.Track, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		out = append(out, d.mapTrack(&result.Tracks.Tracks[i]))
	}
	return out, nil
}

// GetTrackByISRC searches for `isrc:{isrc}`, Spotify's documented ISRC
// filter, and accepts the first hit.
func (d *Driver) GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error) {
	if isrc == "" {
		return domain.Track{}, domain.WithKind(domain.KindInvalidArgument, errors.New("spotify: isrc is required"))
	}

	tracks, err := d.SearchTracks(ctx, fmt.Sprintf("isrc:%s", isrc), 1)
	if err != nil {
		return domain.Track{}, err
	}
	if len(tracks) == 0 {
		return domain.Track{}, domain.WithKind(domain.KindTrackNotFound, errors.Newf("spotify: no track for isrc %s", isrc))
	}
	return tracks[0], nil
}

func (d *Driver) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	pageLimit := 50
	var out []domain.Track
	offset := 0

	for {
		var page *spotify.SavedTrackPage
		err := d.retry(func() error {
			p, err := d.client.CurrentUsersTracks(ctx, spotify.Limit(pageLimit), spotify.Offset(offset), spotify.Market(d.market))
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "spotify: get saved tracks"))
		}

		for _, saved := range page.Tracks {
			out = append(out, d.mapTrack(&saved.FullTrack))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if len(page.Tracks) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return out, nil
}

// GetRandomTrack is not meaningfully expressible against Spotify's API
// (no "random track" endpoint exists), so this is an UnsupportedFeature.
func (d *Driver) GetRandomTrack(ctx context.Context) (*domain.Track, error) {
	return nil, domain.WithKind(domain.KindUnsupportedFeature, errors.New("spotify: get_random_track is not supported"))
}

// GetTrackAssets satisfies ports.AssetResolver, returning the track's
// largest album artwork URL.
func (d *Driver) GetTrackAssets(ctx context.Context, track domain.Track) (domain.Assets, error) {
	if track.ServiceID == "" {
		return domain.Assets{}, nil
	}

	var full *spotify.FullTrack
	err := d.retry(func() error {
		t, err := d.client.GetTrack(ctx, spotify.ID(track.ServiceID), spotify.Market(d.market))
		if err != nil {
			return err
		}
		full = t
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("track_id", track.ServiceID).Msg("spotify: asset resolution failed, returning empty assets")
		return domain.Assets{}, nil
	}
	if len(full.Album.Images) == 0 {
		return domain.Assets{}, nil
	}
	return domain.Assets{CoverImageURL: full.Album.Images[0].URL}, nil
}

func (d *Driver) mapTrack(t *spotify.FullTrack) domain.Track {
	var additional []string
	for i, a := range t.Artists {
		if i == 0 {
			continue
		}
		additional = append(additional, a.Name)
	}

	var primaryArtist string
	if len(t.Artists) > 0 {
		primaryArtist = t.Artists[0].Name
	}

	return domain.Track{
		Title:             t.Name,
		AlbumName:         t.Album.Name,
		PrimaryArtist:     primaryArtist,
		AdditionalArtists: additional,
		DurationSeconds:   int(time.Duration(t.Duration) * time.Millisecond / time.Second),
		TrackNumber:       int(t.TrackNumber),
		ReleaseYear:       releaseYear(t.Album.ReleaseDate),
		ISRC:              t.ExternalIDs["isrc"],
		ServiceID:         string(t.ID),
		ServiceName:       domain.ServiceSpotify,
	}
}

func releaseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(releaseDate[:4], "%d", &year); err != nil {
		return 0
	}
	return year
}

// retry retries a transient Spotify API failure (rate limit, 5xx) with a
// linear backoff, mirroring osa030-19box's client.retry.
func (d *Driver) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < d.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if i < d.maxRetries-1 {
			time.Sleep(d.retryDelay * time.Duration(i+1))
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "rate limit") || strings.Contains(s, "429") ||
		strings.Contains(s, "500") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "504")
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "404") || strings.Contains(s, "not found")
}
