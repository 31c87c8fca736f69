// Package matcher implements the deterministic multi-strategy track
// matching pipeline (spec.md §4.5): origin-service shortcut, direct ISRC,
// batched text search, then MusicBrainz id. Grounded on
// original_source/tunesynctool/features/async_track_matcher.py, translated
// into goroutine/channel concurrency in place of Python's asyncio.
package matcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
	"github.com/jpp0ca/tunesync-core/internal/similarity"
	"github.com/jpp0ca/tunesync-core/internal/textnorm"
)

const (
	queryChunkSize   = 5
	textSearchLimit  = 5
	musicBrainzLimit = 1
)

// Matcher matches a reference Track against a single target provider.
// It is safe to invoke concurrently against distinct Matcher+target pairs;
// it is not reentrant for a target driver that is itself not thread-safe.
type Matcher struct {
	target     ports.ProviderPort
	musicBrainz ports.MusicBrainzClient
}

// New builds a Matcher against target. musicBrainz may be nil, in which
// case strategy 4 resolves no MusicBrainz id itself and only runs for a
// reference that already carries one.
func New(target ports.ProviderPort, musicBrainz ports.MusicBrainzClient) *Matcher {
	return &Matcher{target: target, musicBrainz: musicBrainz}
}

// FindMatch runs the four strategies in order against reference and
// returns the first accepted candidate. A nil, nil result means no
// strategy accepted a candidate.
func (m *Matcher) FindMatch(ctx context.Context, reference domain.Track) (*domain.Track, error) {
	if candidate, err := m.searchOnOriginService(ctx, reference); err != nil {
		return nil, err
	} else if candidate != nil {
		log.Debug().Str("strategy", "origin_service").Msg("matcher: accepted candidate")
		return candidate, nil
	}

	if candidate, err := m.searchByISRCOnly(ctx, reference); err != nil {
		return nil, err
	} else if candidate != nil {
		log.Debug().Str("strategy", "direct_isrc").Msg("matcher: accepted candidate")
		return candidate, nil
	}

	if candidate, err := m.searchWithText(ctx, reference); err != nil {
		return nil, err
	} else if candidate != nil {
		log.Debug().Str("strategy", "text_search").Msg("matcher: accepted candidate")
		return candidate, nil
	}

	if candidate, err := m.searchWithMusicBrainzID(ctx, reference); err != nil {
		return nil, err
	} else if candidate != nil {
		log.Debug().Str("strategy", "musicbrainz_id").Msg("matcher: accepted candidate")
		return candidate, nil
	}

	return nil, nil
}

func (m *Matcher) accept(reference, candidate domain.Track) *domain.Track {
	if similarity.Matches(reference, candidate, similarity.DefaultThreshold) {
		c := candidate
		return &c
	}
	return nil
}

// searchOnOriginService is strategy 1: if the reference was seen on the
// same provider we're matching against, try fetching it back directly.
func (m *Matcher) searchOnOriginService(ctx context.Context, reference domain.Track) (*domain.Track, error) {
	if reference.ServiceName == "" || reference.ServiceName != m.target.Name() || reference.ServiceID == "" {
		return nil, nil
	}

	candidate, err := m.target.GetTrack(ctx, reference.ServiceID)
	if err != nil {
		if kind, ok := domain.KindOf(err); ok && kind == domain.KindTrackNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "matcher: origin service lookup")
	}
	return m.accept(reference, candidate), nil
}

// searchByISRCOnly is strategy 2: a direct ISRC lookup on the target,
// considered the most reliable signal available.
func (m *Matcher) searchByISRCOnly(ctx context.Context, reference domain.Track) (*domain.Track, error) {
	if reference.ISRC == "" || !m.target.SupportsDirectISRCQuerying() {
		return nil, nil
	}

	candidate, err := m.target.GetTrackByISRC(ctx, reference.ISRC)
	if err != nil {
		if kind, ok := domain.KindOf(err); ok && kind == domain.KindTrackNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "matcher: ISRC lookup")
	}
	return m.accept(reference, candidate), nil
}

// searchWithMusicBrainzID is strategy 4: resolve (or reuse) a MusicBrainz
// recording id and search for it on the target as a single-term query.
func (m *Matcher) searchWithMusicBrainzID(ctx context.Context, reference domain.Track) (*domain.Track, error) {
	mbid := reference.MusicBrainzID
	if mbid == "" && m.musicBrainz != nil {
		resolved, err := m.resolveMusicBrainzID(ctx, reference)
		if err != nil {
			return nil, err
		}
		mbid = resolved
	}
	if mbid == "" || !m.target.SupportsMusicBrainzIDQuerying() {
		return nil, nil
	}

	results, err := m.target.SearchTracks(ctx, mbid, musicBrainzLimit)
	if err != nil {
		return nil, errors.Wrap(err, "matcher: MusicBrainz id search")
	}
	if len(results) == 0 {
		return nil, nil
	}
	return m.accept(reference, results[0]), nil
}

func (m *Matcher) resolveMusicBrainzID(ctx context.Context, reference domain.Track) (string, error) {
	if reference.ISRC != "" {
		if id, err := m.musicBrainz.IDFromISRC(ctx, reference.ISRC); err == nil && id != "" {
			return id, nil
		}
	}
	return m.musicBrainz.IDFromQuery(ctx, reference.PrimaryArtist, reference.Title, reference.ReleaseYear, reference.ISRC)
}

// searchWithText is strategy 3: run the deterministic query list in
// chunks of 5, concurrently within a chunk, sequentially across chunks,
// keeping a running best-by-TrackSim candidate.
func (m *Matcher) searchWithText(ctx context.Context, reference domain.Track) (*domain.Track, error) {
	queries := buildQueries(reference)
	if len(queries) == 0 {
		return nil, nil
	}

	var (
		bestCandidate domain.Track
		bestScore     = -1.0
		found         bool
	)

	for start := 0; start < len(queries); start += queryChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "matcher: text search canceled between chunks")
		}

		end := start + queryChunkSize
		if end > len(queries) {
			end = len(queries)
		}
		chunk := queries[start:end]

		chunkBest, chunkScore, chunkFound, err := m.searchChunk(ctx, chunk, reference)
		if err != nil {
			return nil, err
		}
		if chunkFound && chunkScore > bestScore {
			bestCandidate, bestScore, found = chunkBest, chunkScore, true
		}
	}

	if !found {
		return nil, nil
	}
	return m.accept(reference, bestCandidate), nil
}

type chunkResult struct {
	track domain.Track
	score float64
	found bool
	err   error
}

func (m *Matcher) searchChunk(ctx context.Context, queries []string, reference domain.Track) (domain.Track, float64, bool, error) {
	results := make([]chunkResult, len(queries))
	var wg sync.WaitGroup

	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results[i] = m.bestForQuery(ctx, query, reference)
		}(i, query)
	}
	wg.Wait()

	var (
		best      domain.Track
		bestScore = -1.0
		found     bool
	)
	for _, r := range results {
		if r.err != nil {
			return domain.Track{}, 0, false, r.err
		}
		if r.found && r.score > bestScore {
			best, bestScore, found = r.track, r.score, true
		}
	}
	return best, bestScore, found, nil
}

func (m *Matcher) bestForQuery(ctx context.Context, query string, reference domain.Track) chunkResult {
	candidates, err := m.target.SearchTracks(ctx, query, textSearchLimit)
	if err != nil {
		return chunkResult{err: errors.Wrapf(err, "matcher: text search for query %q", query)}
	}
	if len(candidates) == 0 {
		return chunkResult{}
	}

	var (
		best      domain.Track
		bestScore = -1.0
	)
	for _, c := range candidates {
		score := similarity.TrackSim(reference, c)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return chunkResult{track: best, score: bestScore, found: true}
}

// buildQueries constructs the deterministic query list for strategy 3, in
// the exact order original_source's async_track_matcher.py does: cleaned
// and raw title, cleaned and raw artist, then (only when both are present)
// four cleaned combinations followed by three raw combinations — note the
// fourth raw combination ("title - artist") is intentionally absent, a
// preserved asymmetry from the source this was distilled from — and
// finally the bare album name.
func buildQueries(t domain.Track) []string {
	var queries []string

	cleanTitle := textnorm.Normalize(t.Title)
	cleanArtist := textnorm.Normalize(t.PrimaryArtist)

	if t.Title != "" {
		queries = append(queries, cleanTitle, t.Title)
	}
	if t.PrimaryArtist != "" {
		queries = append(queries, cleanArtist, t.PrimaryArtist)
	}
	if t.PrimaryArtist != "" && t.Title != "" {
		queries = append(queries,
			fmt.Sprintf("%s %s", cleanArtist, cleanTitle),
			fmt.Sprintf("%s %s", cleanTitle, cleanArtist),
			fmt.Sprintf("%s - %s", cleanArtist, cleanTitle),
			fmt.Sprintf("%s - %s", cleanTitle, cleanArtist),
			fmt.Sprintf("%s %s", t.PrimaryArtist, t.Title),
			fmt.Sprintf("%s %s", t.Title, t.PrimaryArtist),
			fmt.Sprintf("%s - %s", t.PrimaryArtist, t.Title),
		)
	}
	if t.AlbumName != "" {
		queries = append(queries, t.AlbumName)
	}

	return queries
}
