// Package youtube implements ports.ProviderPort against the YouTube Data
// API v3 using raw net/http requests, grounded on the teacher's
// internal/adapters/youtube adapter — the same request-building idiom,
// generalized from a migration-specific subset to the full provider
// surface (playlists, tracks-as-videos, search, create, add).
//
// YouTube's catalog has no concept of ISRC or MusicBrainz id, and no
// "liked songs" or "random video" endpoint meaningful for this domain, so
// several ProviderPort operations are UnsupportedFeature here.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

const (
	baseURL    = "https://www.googleapis.com/youtube/v3"
	maxResults = 50
)

// Driver implements ports.ProviderPort against the YouTube Data API v3.
// httpClient is expected to already carry OAuth2 credentials.
type Driver struct {
	client *http.Client
}

// New builds a Driver over an already-authenticated httpClient.
func New(httpClient *http.Client) *Driver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Driver{client: httpClient}
}

var _ ports.ProviderPort = (*Driver)(nil)

func (d *Driver) Name() domain.ServiceName { return domain.ServiceYouTube }

func (d *Driver) SupportsDirectISRCQuerying() bool    { return false }
func (d *Driver) SupportsMusicBrainzIDQuerying() bool { return false }

type playlistListResponse struct {
	Items         []playlistResource `json:"items"`
	NextPageToken string              `json:"nextPageToken"`
}

type playlistResource struct {
	ID             string          `json:"id"`
	Snippet        playlistSnippet `json:"snippet"`
	ContentDetails struct {
		ItemCount int `json:"itemCount"`
	} `json:"contentDetails"`
}

type playlistSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
}

type playlistItemsResponse struct {
	Items         []playlistItemResource `json:"items"`
	NextPageToken string                 `json:"nextPageToken"`
}

type playlistItemResource struct {
	Snippet playlistItemSnippet `json:"snippet"`
}

type playlistItemSnippet struct {
	Title                  string     `json:"title"`
	VideoOwnerChannelTitle string     `json:"videoOwnerChannelTitle"`
	ResourceID             resourceID `json:"resourceId"`
}

type resourceID struct {
	VideoID string `json:"videoId"`
}

type searchListResponse struct {
	Items []searchResultItem `json:"items"`
}

type searchResultItem struct {
	ID      searchResultID `json:"id"`
	Snippet searchSnippet  `json:"snippet"`
}

type searchResultID struct {
	VideoID string `json:"videoId"`
}

type searchSnippet struct {
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
}

func (d *Driver) GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	var out []domain.Playlist
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("%s/playlists?part=snippet,contentDetails&mine=true&maxResults=%d", baseURL, maxResults)
		if pageToken != "" {
			endpoint += "&pageToken=" + pageToken
		}

		body, err := d.doGet(ctx, endpoint)
		if err != nil {
			return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: get user playlists"))
		}

		var resp playlistListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: decode playlists response"))
		}

		for _, item := range resp.Items {
			out = append(out, domain.Playlist{
				Name:        item.Snippet.Title,
				Description: item.Snippet.Description,
				AuthorName:  item.Snippet.ChannelTitle,
				ServiceID:   item.ID,
				ServiceName: domain.ServiceYouTube,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return out, nil
}

func (d *Driver) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	endpoint := fmt.Sprintf("%s/playlists?part=snippet,contentDetails&id=%s", baseURL, url.QueryEscape(id))
	body, err := d.doGet(ctx, endpoint)
	if err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: get playlist"))
	}

	var resp playlistListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: decode playlist response"))
	}
	if len(resp.Items) == 0 {
		return domain.Playlist{}, domain.WithKind(domain.KindPlaylistNotFound, errors.Newf("youtube: no playlist %s", id))
	}

	item := resp.Items[0]
	return domain.Playlist{
		Name: item.Snippet.Title, Description: item.Snippet.Description,
		AuthorName: item.Snippet.ChannelTitle, ServiceID: item.ID, ServiceName: domain.ServiceYouTube,
	}, nil
}

func (d *Driver) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error) {
	var out []domain.Track
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("%s/playlistItems?part=snippet&playlistId=%s&maxResults=%d",
			baseURL, url.QueryEscape(id), maxResults)
		if pageToken != "" {
			endpoint += "&pageToken=" + pageToken
		}

		body, err := d.doGet(ctx, endpoint)
		if err != nil {
			return nil, domain.WithKind(domain.KindPlaylistNotFound, errors.Wrap(err, "youtube: get playlist items"))
		}

		var resp playlistItemsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: decode playlist items response"))
		}

		for _, item := range resp.Items {
			if item.Snippet.ResourceID.VideoID == "" {
				continue
			}
			title, artist := parseVideoTitle(item.Snippet.Title)
			if title == "" {
				title = item.Snippet.Title
			}
			if artist == "" {
				artist = item.Snippet.VideoOwnerChannelTitle
			}
			out = append(out, domain.Track{
				Title: title, PrimaryArtist: artist,
				ServiceID: item.Snippet.ResourceID.VideoID, ServiceName: domain.ServiceYouTube,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return out, nil
}

func (d *Driver) CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error) {
	payload := map[string]any{
		"snippet": map[string]string{"title": name},
		"status":  map[string]string{"privacyStatus": "private"},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindInvalidArgument, err)
	}

	body, err := d.doPost(ctx, fmt.Sprintf("%s/playlists?part=snippet,status", baseURL), raw)
	if err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: create playlist"))
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Playlist{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: decode create playlist response"))
	}

	return domain.Playlist{Name: name, ServiceID: resp.ID, ServiceName: domain.ServiceYouTube}, nil
}

// AddTracksToPlaylist adds videos one at a time, since playlistItems.insert
// has no bulk form in the Data API.
func (d *Driver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	for _, videoID := range trackIDs {
		payload := map[string]any{
			"snippet": map[string]any{
				"playlistId": playlistID,
				"resourceId": map[string]string{"kind": "youtube#video", "videoId": videoID},
			},
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return domain.WithKind(domain.KindInvalidArgument, err)
		}
		if _, err := d.doPost(ctx, fmt.Sprintf("%s/playlistItems?part=snippet", baseURL), raw); err != nil {
			return domain.WithKind(domain.KindProviderError, errors.Wrapf(err, "youtube: add video %s to playlist", videoID))
		}
	}
	return nil
}

func (d *Driver) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	endpoint := fmt.Sprintf("%s/videos?part=snippet,contentDetails&id=%s", baseURL, url.QueryEscape(id))
	body, err := d.doGet(ctx, endpoint)
	if err != nil {
		return domain.Track{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: get video"))
	}

	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Track{}, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: decode video response"))
	}
	if len(resp.Items) == 0 {
		return domain.Track{}, domain.WithKind(domain.KindTrackNotFound, errors.Newf("youtube: no video %s", id))
	}

	item := resp.Items[0]
	title, artist := parseVideoTitle(item.Snippet.Title)
	if title == "" {
		title = item.Snippet.Title
	}
	if artist == "" {
		artist = item.Snippet.ChannelTitle
	}
	return domain.Track{Title: title, PrimaryArtist: artist, ServiceID: item.ID, ServiceName: domain.ServiceYouTube}, nil
}

func (d *Driver) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	if limit <= 0 || limit > maxResults {
		limit = 5
	}
	endpoint := fmt.Sprintf("%s/search?part=snippet&type=video&videoCategoryId=10&maxResults=%d&q=%s",
		baseURL, limit, url.QueryEscape(query))

	body, err := d.doGet(ctx, endpoint)
	if err != nil {
		return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: search"))
	}

	var resp searchListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WithKind(domain.KindProviderError, errors.Wrap(err, "youtube: decode search response"))
	}

	out := make([]domain.Track, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		title, artist := parseVideoTitle(item.Snippet.Title)
		if title == "" {
			title = item.Snippet.Title
		}
		if artist == "" {
			artist = item.Snippet.ChannelTitle
		}
		out = append(out, domain.Track{
			Title: title, PrimaryArtist: artist, ServiceID: item.ID.VideoID, ServiceName: domain.ServiceYouTube,
		})
	}
	return out, nil
}

func (d *Driver) GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error) {
	return domain.Track{}, domain.WithKind(domain.KindUnsupportedFeature, errors.New("youtube: get_track_by_isrc is not supported"))
}

func (d *Driver) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return nil, domain.WithKind(domain.KindUnsupportedFeature, errors.New("youtube: get_saved_tracks is not supported"))
}

func (d *Driver) GetRandomTrack(ctx context.Context) (*domain.Track, error) {
	return nil, domain.WithKind(domain.KindUnsupportedFeature, errors.New("youtube: get_random_track is not supported"))
}

func (d *Driver) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return d.do(req)
}

func (d *Driver) doPost(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req)
}

func (d *Driver) do(req *http.Request) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf("youtube API returned status %s: %s", strconv.Itoa(resp.StatusCode), string(body))
	}
	return body, nil
}

// parseVideoTitle splits a YouTube video title into title/artist for the
// common "Artist - Track" upload convention. Best-effort only: video
// titles are free text, not structured metadata.
func parseVideoTitle(title string) (name, artist string) {
	suffixes := []string{
		"(Official Video)", "(Official Music Video)", "(Official Audio)",
		"(Lyric Video)", "(Lyrics)", "(Audio)", "[Official Video]",
		"[Official Music Video]", "[Official Audio]", "(HD)", "(HQ)",
	}
	cleaned := title
	for _, suffix := range suffixes {
		cleaned = strings.TrimSpace(strings.Replace(cleaned, suffix, "", 1))
	}

	parts := strings.SplitN(cleaned, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}
	return cleaned, ""
}
