// Package musicbrainz is the external MusicBrainz lookup collaborator
// consumed by the matcher's MusicBrainz-id strategy (spec.md §6). Grounded
// on the rate-limited, TTL-cached HTTP client pattern used by
// teal-fm/piper's musicbrainz service in the example pack.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const searchEndpoint = "https://musicbrainz.org/ws/2/recording"

// recording is the subset of MusicBrainz's recording schema this client
// needs.
type recording struct {
	ID    string   `json:"id"`
	ISRCs []string `json:"isrcs,omitempty"`
}

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type cacheEntry struct {
	id        string
	expiresAt time.Time
}

// Client implements ports.MusicBrainzClient. MusicBrainz's API etiquette
// requires a descriptive User-Agent with contact info and caps anonymous
// clients at ~1 request/second, hence the limiter.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	userAgent   string
	cache       map[string]cacheEntry
	cacheMu     sync.RWMutex
	cacheTTL    time.Duration
}

// NewClient creates a MusicBrainz lookup client. contactEmail is embedded
// in the User-Agent header, as MusicBrainz's usage guidelines require.
func NewClient(appName, appVersion, contactEmail string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		userAgent:  fmt.Sprintf("%s/%s (%s)", appName, appVersion, contactEmail),
		cache:      make(map[string]cacheEntry),
		cacheTTL:   time.Hour,
	}
}

// IDFromISRC resolves a MusicBrainz recording id directly from an ISRC.
// Failures (network, not-found, parse) are swallowed to ("", nil) per
// spec.md §6.
func (c *Client) IDFromISRC(ctx context.Context, isrc string) (string, error) {
	if isrc == "" {
		return "", nil
	}
	return c.search(ctx, fmt.Sprintf(`isrc:"%s"`, isrc), cacheKey("isrc", isrc))
}

// IDFromQuery resolves a MusicBrainz recording id from loose metadata.
// year and isrc are optional refinements; pass 0/"" to omit them.
func (c *Client) IDFromQuery(ctx context.Context, artist, title string, year int, isrc string) (string, error) {
	var parts []string
	if isrc != "" {
		parts = append(parts, fmt.Sprintf(`isrc:"%s"`, isrc))
	}
	if title != "" {
		parts = append(parts, fmt.Sprintf(`recording:"%s"`, title))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf(`artist:"%s"`, artist))
	}
	if year != 0 {
		parts = append(parts, fmt.Sprintf(`date:%d`, year))
	}
	if len(parts) == 0 {
		return "", nil
	}

	query := strings.Join(parts, " AND ")
	return c.search(ctx, query, cacheKey("query", query))
}

func cacheKey(kind, value string) string {
	return kind + ":" + value
}

func (c *Client) search(ctx context.Context, query, key string) (string, error) {
	if id, ok := c.fromCache(key); ok {
		return id, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s?query=%s&fmt=json&limit=1", searchEndpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("query", query).Msg("musicbrainz: request failed, swallowing")
		return "", nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Recordings) == 0 {
		return "", nil
	}

	id := parsed.Recordings[0].ID
	c.store(key, id)
	return id, nil
}

func (c *Client) fromCache(key string) (string, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.id, true
}

func (c *Client) store(key, id string) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{id: id, expiresAt: time.Now().Add(c.cacheTTL)}
}
