// Package transfer implements the PlaylistTransferHandler orchestration
// (spec.md §4.8): the single handler registered against the worker pool
// for TaskKindPlaylistTransfer tasks. Grounded on
// original_source/webui/api/workers/handlers/playlist_transfer_handler.go.
package transfer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/matcher"
	"github.com/jpp0ca/tunesync-core/internal/ports"
	"github.com/jpp0ca/tunesync-core/internal/workerpool"
)

const (
	fetchTracksTimeout = 30 * time.Second
	perTrackTimeout    = 300 * time.Second
	assetTimeout       = 15 * time.Second

	rateLimitPauseEvery = 10
	rateLimitPauseSleep = 5 * time.Second

	insertChunkSize  = 25
	insertPauseSleep = 3 * time.Second
)

// Handler orchestrates USER_INITIATED_PLAYLIST_TRANSFER tasks.
type Handler struct {
	drivers      ports.DriverFactory
	musicBrainz  ports.MusicBrainzClient
}

// New builds a transfer Handler. musicBrainz may be nil (strategy 4 of
// the matcher then resolves no MusicBrainz id itself and only runs for
// reference tracks that already carry one).
func New(drivers ports.DriverFactory, musicBrainz ports.MusicBrainzClient) *Handler {
	return &Handler{drivers: drivers, musicBrainz: musicBrainz}
}

var _ workerpool.Handler = (*Handler)(nil)

// Handle runs the nine-step algorithm in spec.md §4.8. It always records
// a terminal status itself before returning nil; a non-nil return means a
// bug, not an expected failure path.
func (h *Handler) Handle(ctx context.Context, tc *workerpool.TaskContext) error {
	task := tc.Task()
	args := task.Arguments

	log.Info().Str("task", task.TaskID).
		Str("from_playlist", args.FromPlaylist).
		Str("from", string(args.FromProvider)).
		Str("to", string(args.ToProvider)).
		Msg("transfer: starting")

	// Step 1: construct source and target drivers.
	sourceDriver, err := h.drivers.Build(ctx, task.UserID, args.FromProvider)
	if err != nil {
		log.Error().Err(err).Str("task", task.TaskID).Msg("transfer: failed to build source driver")
		return tc.Fail(ctx, "An error occurred.")
	}
	targetDriver, err := h.drivers.Build(ctx, task.UserID, args.ToProvider)
	if err != nil {
		log.Error().Err(err).Str("task", task.TaskID).Msg("transfer: failed to build target driver")
		return tc.Fail(ctx, "An error occurred.")
	}

	// Step 2: fetch the source playlist.
	sourcePlaylist, err := sourceDriver.GetPlaylist(ctx, args.FromPlaylist)
	if err != nil {
		if kind, ok := domain.KindOf(err); ok && kind == domain.KindPlaylistNotFound {
			return tc.Cancel(ctx, "Playlist does not exist.")
		}
		log.Error().Err(err).Str("task", task.TaskID).Msg("transfer: failed to fetch source playlist")
		return tc.Fail(ctx, "An error occurred.")
	}

	// Step 3: fetch all source tracks, 30s budget.
	fetchCtx, cancelFetch := context.WithTimeout(ctx, fetchTracksTimeout)
	sourceTracks, err := sourceDriver.GetPlaylistTracks(fetchCtx, sourcePlaylist.ServiceID, 0)
	cancelFetch()
	if err != nil {
		log.Error().Err(err).Str("task", task.TaskID).Msg("transfer: failed to fetch source tracks")
		return tc.Fail(ctx, "An error occurred.")
	}

	// Step 4: empty playlist.
	if len(sourceTracks) == 0 {
		return tc.Cancel(ctx, "No items to process.")
	}

	// Step 5: per-track matching loop.
	trackMatcher := matcher.New(targetDriver, h.musicBrainz)
	assetResolver, _ := sourceDriver.(ports.AssetResolver)

	matches, cancelled, err := h.matchAllTracks(ctx, tc, sourceTracks, trackMatcher, assetResolver)
	if err != nil {
		return err
	}
	if cancelled {
		return nil
	}

	// Step 6: no matches found.
	if len(matches) == 0 {
		return tc.Cancel(ctx, "Couldn't find any matches.")
	}

	// Step 7: create the target playlist.
	targetPlaylist, err := targetDriver.CreatePlaylist(ctx, sourcePlaylist.Name)
	if err != nil {
		log.Error().Err(err).Str("task", task.TaskID).Msg("transfer: failed to create target playlist")
		return tc.Fail(ctx, "Couldn't create playlist.")
	}

	// Step 8: insert matches in chunks of 25, with ON_HOLD pauses between.
	stopped, err := h.insertMatches(ctx, tc, targetDriver, targetPlaylist.ServiceID, matches)
	if err != nil {
		return err
	}
	if stopped {
		return nil
	}

	// Step 9: done.
	log.Info().Str("task", task.TaskID).Msg("transfer: finished")
	return tc.Finish(ctx)
}

// matchAllTracks runs step 5: the per-track loop with cancellation checks,
// rate-limit pauses, per-track/per-asset timeouts, and progress snapshots.
// The returned bool reports whether the loop observed cancellation (in
// which case the caller must return without further writes).
func (h *Handler) matchAllTracks(ctx context.Context, tc *workerpool.TaskContext, sourceTracks []domain.Track, trackMatcher *matcher.Matcher, assetResolver ports.AssetResolver) ([]domain.Track, bool, error) {
	var matches []domain.Track

	for _, sourceTrack := range sourceTracks {
		cancelled, err := tc.IsCancelled(ctx)
		if err != nil {
			return nil, false, err
		}
		if cancelled {
			return nil, true, nil
		}

		task := tc.Task()
		if task.Progress.Handled != 0 && task.Progress.Handled%rateLimitPauseEvery == 0 {
			if err := tc.Hold(ctx, "Pausing transfer to avoid a rate limit."); err != nil {
				return nil, false, err
			}
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(rateLimitPauseSleep):
			}
		}

		if err := tc.TransitionRunning(ctx); err != nil {
			return nil, false, err
		}

		sourceTrackCopy := sourceTrack
		tc.Update(func(t *domain.Task) {
			t.Progress.Handled++
			t.Progress.InQueue = len(sourceTracks) - t.Progress.Handled
		})

		candidate := h.findMatchWithBudget(ctx, trackMatcher, sourceTrackCopy)
		if candidate != nil {
			matches = append(matches, *candidate)
		}

		assets := h.resolveAssetsWithBudget(ctx, assetResolver, sourceTrackCopy)
		snapshot := sourceTrackCopy
		snapshot.ServiceData = mergeAssets(snapshot.ServiceData, assets)
		tc.Update(func(t *domain.Task) {
			t.Progress.Track = &snapshot
		})

		if err := tc.Save(ctx); err != nil {
			return nil, false, err
		}
	}

	return matches, false, nil
}

func (h *Handler) findMatchWithBudget(ctx context.Context, trackMatcher *matcher.Matcher, reference domain.Track) *domain.Track {
	matchCtx, cancel := context.WithTimeout(ctx, perTrackTimeout)
	defer cancel()

	candidate, err := trackMatcher.FindMatch(matchCtx, reference)
	if err != nil {
		if matchCtx.Err() != nil {
			log.Warn().Str("track", reference.ServiceID).Msg("transfer: matching timed out, skipping track")
			return nil
		}
		log.Warn().Err(err).Str("track", reference.ServiceID).Msg("transfer: matching failed, skipping track")
		return nil
	}
	return candidate
}

func (h *Handler) resolveAssetsWithBudget(ctx context.Context, resolver ports.AssetResolver, track domain.Track) domain.Assets {
	if resolver == nil {
		return domain.Assets{}
	}

	assetCtx, cancel := context.WithTimeout(ctx, assetTimeout)
	defer cancel()

	assets, err := resolver.GetTrackAssets(assetCtx, track)
	if err != nil {
		log.Warn().Str("track", track.ServiceID).Msg("transfer: asset resolution timed out or failed, using empty assets")
		return domain.Assets{}
	}
	return assets
}

func mergeAssets(data map[string]any, assets domain.Assets) map[string]any {
	if assets.CoverImageURL == "" {
		return data
	}
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["cover_image_url"] = assets.CoverImageURL
	return data
}

// insertMatches runs step 8: insert in chunks of 25, pausing ON_HOLD for
// 3s between chunks, observing cancellation between chunks. The returned
// bool reports whether the loop stopped early on cancellation or on a
// failed chunk (already recorded as FAILED), in which case the caller must
// return without further writes.
func (h *Handler) insertMatches(ctx context.Context, tc *workerpool.TaskContext, target ports.ProviderPort, playlistID string, matches []domain.Track) (bool, error) {
	trackIDs := make([]string, len(matches))
	for i, m := range matches {
		trackIDs[i] = m.ServiceID
	}

	for start := 0; start < len(trackIDs); start += insertChunkSize {
		cancelled, err := tc.IsCancelled(ctx)
		if err != nil {
			return false, err
		}
		if cancelled {
			return true, nil
		}

		end := start + insertChunkSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}

		if err := target.AddTracksToPlaylist(ctx, playlistID, trackIDs[start:end]); err != nil {
			log.Error().Err(err).Msg("transfer: failed to insert a chunk of matches")
			return true, tc.Fail(ctx, "An error occurred.")
		}

		if end < len(trackIDs) {
			if err := tc.Hold(ctx, "Pausing transfer to avoid a rate limit."); err != nil {
				return false, err
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(insertPauseSleep):
			}
			if err := tc.TransitionRunning(ctx); err != nil {
				return false, err
			}
		}
	}

	return false, nil
}
