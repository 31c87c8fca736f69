// Package deezer implements ports.ProviderPort against Deezer, grounded
// on original_source/tunesynctool/drivers/common/deezer/driver.go's
// operation set. The original wraps streamrip's DeezerClient, which
// authenticates with an "arl" session cookie rather than OAuth2 (Deezer's
// public API has no write scope for playlist management without a
// registered partner app) — this driver reproduces that split: read
// operations (search, track/playlist lookup) go through Deezer's public,
// unauthenticated JSON API, while playlist mutation and the user's own
// playlist list go through the same ARL-cookie-authenticated private
// gateway the original's ARL flow relies on.
package deezer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

const (
	publicAPIBase  = "https://api.deezer.com"
	privateGateway = "https://www.deezer.com/ajax/gw-light.php"
)

// Driver implements ports.ProviderPort against Deezer's public search/
// lookup API plus its ARL-authenticated private gateway for account
// operations.
type Driver struct {
	httpClient *http.Client
	arl        string
	publicBase string
	gatewayURL string

	mu       sync.Mutex
	apiToken string // lazily fetched from deezer.getUserData
}

// New builds a Driver. arl is the session cookie value copied from an
// authenticated Deezer web session (Deezer has no public OAuth write
// scope for playlist management, hence the cookie-based approach the
// original also uses).
func New(arl string) (*Driver, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "deezer: build cookie jar")
	}

	u, _ := url.Parse("https://www.deezer.com")
	jar.SetCookies(u, []*http.Cookie{{Name: "arl", Value: arl, Path: "/", Domain: ".deezer.com"}})

	return &Driver{
		httpClient: &http.Client{Jar: jar}, arl: arl,
		publicBase: publicAPIBase, gatewayURL: privateGateway,
	}, nil
}

var _ ports.ProviderPort = (*Driver)(nil)

func (d *Driver) Name() domain.ServiceName { return domain.ServiceDeezer }

// SupportsDirectISRCQuerying is true: Deezer's public API exposes
// /2.0/track/isrc:{isrc} directly, and the original driver declares the
// same capability.
func (d *Driver) SupportsDirectISRCQuerying() bool    { return true }
func (d *Driver) SupportsMusicBrainzIDQuerying() bool { return false }

type trackPayload struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Duration int           `json:"duration"`
	TrackPos int           `json:"track_position"`
	ISRC     string        `json:"isrc"`
	Artist   artistPayload `json:"artist"`
	Album    albumPayload  `json:"album"`
}

type artistPayload struct {
	Name string `json:"name"`
}

type albumPayload struct {
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

type playlistPayload struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Creator     artistPayload  `json:"creator"`
	Tracks      tracksListWrap `json:"tracks"`
}

type tracksListWrap struct {
	Data []trackPayload `json:"data"`
}

func (d *Driver) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	var payload playlistPayload
	if err := d.getPublic(ctx, fmt.Sprintf("/playlist/%s", id), &payload); err != nil {
		if isDeezerNotFound(err) {
			return domain.Playlist{}, domain.WithKind(domain.KindPlaylistNotFound, err)
		}
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: get playlist"))
	}
	return d.mapPlaylist(payload), nil
}

func (d *Driver) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error) {
	var payload playlistPayload
	if err := d.getPublic(ctx, fmt.Sprintf("/playlist/%s", id), &payload); err != nil {
		if isDeezerNotFound(err) {
			return nil, domain.WithKind(domain.KindPlaylistNotFound, err)
		}
		return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: get playlist tracks"))
	}

	tracks := payload.Tracks.Data
	if limit > 0 && limit < len(tracks) {
		tracks = tracks[:limit]
	}
	out := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, d.mapTrack(t))
	}
	return out, nil
}

func (d *Driver) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	var payload trackPayload
	if err := d.getPublic(ctx, fmt.Sprintf("/track/%s", id), &payload); err != nil {
		if isDeezerNotFound(err) {
			return domain.Track{}, domain.WithKind(domain.KindTrackNotFound, err)
		}
		return domain.Track{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: get track"))
	}
	return d.mapTrack(payload), nil
}

func (d *Driver) GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error) {
	var payload trackPayload
	if err := d.getPublic(ctx, fmt.Sprintf("/track/isrc:%s", isrc), &payload); err != nil {
		if isDeezerNotFound(err) {
			return domain.Track{}, domain.WithKind(domain.KindTrackNotFound, err)
		}
		return domain.Track{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: get track by isrc"))
	}
	return d.mapTrack(payload), nil
}

func (d *Driver) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		limit = 20
	}
	var resp struct {
		Data []trackPayload `json:"data"`
	}
	endpoint := fmt.Sprintf("/search/track?q=%s&limit=%d", url.QueryEscape(query), limit)
	if err := d.getPublic(ctx, endpoint, &resp); err != nil {
		return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: search tracks"))
	}

	out := make([]domain.Track, 0, len(resp.Data))
	for _, t := range resp.Data {
		out = append(out, d.mapTrack(t))
	}
	return out, nil
}

func (d *Driver) GetRandomTrack(ctx context.Context) (*domain.Track, error) {
	return nil, domain.WithKind(domain.KindUnsupportedFeature, errors.New("deezer: get_random_track is not supported"))
}

func (d *Driver) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return nil, domain.WithKind(domain.KindUnsupportedFeature, errors.New("deezer: get_saved_tracks is not supported"))
}

// GetUserPlaylists, CreatePlaylist, and AddTracksToPlaylist go through the
// ARL-authenticated private gateway: Deezer's public API has no
// unauthenticated or OAuth-backed write surface for playlist ownership.

func (d *Driver) GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	var resp struct {
		Results struct {
			TAB struct {
				Playlists struct {
					Data []playlistPayload `json:"data"`
				} `json:"playlists"`
			} `json:"TAB"`
		} `json:"results"`
	}
	if err := d.gateway(ctx, "deezer.pageProfile", nil, &resp); err != nil {
		return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: get user playlists"))
	}

	out := make([]domain.Playlist, 0, len(resp.Results.TAB.Playlists.Data))
	for _, p := range resp.Results.TAB.Playlists.Data {
		out = append(out, d.mapPlaylist(p))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (d *Driver) CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error) {
	var resp struct {
		Results string `json:"results"`
	}
	params := map[string]any{"title": name, "songs": []any{}}
	if err := d.gateway(ctx, "playlist.create", params, &resp); err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: create playlist"))
	}
	return domain.Playlist{Name: name, ServiceID: resp.Results, ServiceName: domain.ServiceDeezer}, nil
}

func (d *Driver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	songs := make([][2]any, len(trackIDs))
	for i, id := range trackIDs {
		songs[i] = [2]any{id, i}
	}
	params := map[string]any{"playlist_id": playlistID, "songs": songs}
	if err := d.gateway(ctx, "playlist.addSongs", params, nil); err != nil {
		return domain.WithKind(domain.KindProviderError, errors.Wrap(err, "deezer: add tracks to playlist"))
	}
	return nil
}

func (d *Driver) mapPlaylist(p playlistPayload) domain.Playlist {
	return domain.Playlist{
		Name: p.Title, Description: p.Description, IsPublic: p.Public, AuthorName: p.Creator.Name,
		ServiceID: strconv.FormatInt(p.ID, 10), ServiceName: domain.ServiceDeezer,
	}
}

func (d *Driver) mapTrack(t trackPayload) domain.Track {
	return domain.Track{
		Title: t.Title, AlbumName: t.Album.Title, PrimaryArtist: t.Artist.Name,
		DurationSeconds: t.Duration, TrackNumber: t.TrackPos, ReleaseYear: yearFromDate(t.Album.ReleaseDate),
		ISRC: t.ISRC, ServiceID: strconv.FormatInt(t.ID, 10), ServiceName: domain.ServiceDeezer,
	}
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// getPublic calls Deezer's public, unauthenticated API.
func (d *Driver) getPublic(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.publicBase+path, nil)
	if err != nil {
		return err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var probe struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error.Type != "" {
		return errors.Newf("deezer: %s: %s", probe.Error.Type, probe.Error.Message)
	}

	return json.Unmarshal(body, out)
}

// gateway calls the ARL-authenticated private gw-light.php API, lazily
// minting an api_token from deezer.getUserData on first use.
func (d *Driver) gateway(ctx context.Context, method string, params any, out any) error {
	token, err := d.token(ctx)
	if err != nil {
		return err
	}
	return d.gatewayCall(ctx, method, token, params, out)
}

func (d *Driver) token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.apiToken != "" {
		return d.apiToken, nil
	}

	var resp struct {
		Results struct {
			CheckForm string `json:"checkForm"`
		} `json:"results"`
	}
	if err := d.gatewayCall(ctx, "deezer.getUserData", "", nil, &resp); err != nil {
		return "", domain.WithKind(domain.KindAuthError, errors.Wrap(err, "deezer: fetch api token"))
	}
	if resp.Results.CheckForm == "" {
		return "", domain.WithKind(domain.KindAuthError, errors.New("deezer: arl did not yield a valid session"))
	}
	d.apiToken = resp.Results.CheckForm
	return d.apiToken, nil
}

func (d *Driver) gatewayCall(ctx context.Context, method, apiToken string, params any, out any) error {
	body := []byte("{}")
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		body = b
	}

	v := url.Values{"method": {method}, "input": {"3"}, "api_version": {"1.0"}}
	if apiToken != "" {
		v.Set("api_token", apiToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL+"?"+v.Encode(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("deezer gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Error map[string]any `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err == nil && len(envelope.Error) > 0 {
		return errors.Newf("deezer gateway error: %v", envelope.Error)
	}

	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

func isDeezerNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "DataException") || strings.Contains(msg, "no data") || strings.Contains(msg, "not found")
}
