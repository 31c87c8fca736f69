// Package similarity computes the string and track similarity scalars used
// by the matcher to accept or reject a candidate track.
package similarity

import (
	"math"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/textnorm"
)

// DefaultThreshold is the acceptance threshold used by Matches when the
// caller doesn't specify one (spec.md §4.2).
const DefaultThreshold = 0.75

// StrSim returns the longest-common-subsequence ratio of two normalized
// strings, in [0,1]. By convention StrSim("", "") == 0.
func StrSim(a, b string) float64 {
	a = textnorm.Normalize(a)
	b = textnorm.Normalize(b)
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	lcs := lcsLength(a, b)
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 0
	}
	return 2 * float64(lcs) / float64(total)
}

// lcsLength computes the length of the longest common subsequence of a and
// b using a rolling two-row DP table (classic sequence-matcher ratio
// denominator).
func lcsLength(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// IntClose returns 1.0 if a == b, else 1 - |a-b|/max(a,b) rounded to one
// decimal. Returns 0.0 if either value is absent (represented as 0, the
// "unset" sentinel for these optional integer fields).
func IntClose(a, b int, aSet, bSet bool) float64 {
	if !aSet || !bSet || a == 0 || b == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	maxV := a
	if b > maxV {
		maxV = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return roundTo(1-float64(diff)/float64(maxV), 1)
}

func roundTo(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}

// weights used by TrackSim, per spec.md §4.2. Album/track-number/year
// weights are conditionally gated; see trackSimWeights.
type weights struct {
	title, artist, album, duration, trackNumber, year float64
}

func trackSimWeights(a, b domain.Track) weights {
	album := 0.75
	if a.AlbumName != "" && b.AlbumName != "" {
		album = 1.25
	}

	// Preserved quirk from the source system: both the track-number and
	// release-year weights gate on the track-number pair being present,
	// not on release-year itself. See spec.md §9.
	trackYearWeight := 0.0
	if a.HasTrackNumber() && b.HasTrackNumber() {
		trackYearWeight = 0.5
	}

	return weights{
		title:       4.0,
		artist:      3.0,
		album:       album,
		duration:    0.75,
		trackNumber: trackYearWeight,
		year:        trackYearWeight,
	}
}

// TrackSim returns the weighted similarity between two tracks, in [0,1],
// rounded to two decimals. Identical non-empty ISRC or MusicBrainz id is a
// shortcut to 1.0.
func TrackSim(a, b domain.Track) float64 {
	if a.ISRC != "" && b.ISRC != "" && a.ISRC == b.ISRC {
		return 1
	}
	if a.MusicBrainzID != "" && b.MusicBrainzID != "" && a.MusicBrainzID == b.MusicBrainzID {
		return 1
	}

	w := trackSimWeights(a, b)

	titleSim := StrSim(a.Title, b.Title)
	artistSim := StrSim(a.PrimaryArtist, b.PrimaryArtist)
	albumSim := StrSim(a.AlbumName, b.AlbumName)
	durationSim := IntClose(a.DurationSeconds, b.DurationSeconds, a.HasDuration(), b.HasDuration())
	trackNumSim := IntClose(a.TrackNumber, b.TrackNumber, a.HasTrackNumber(), b.HasTrackNumber())
	yearSim := IntClose(a.ReleaseYear, b.ReleaseYear, a.HasReleaseYear(), b.HasReleaseYear())

	sumWeighted := titleSim*w.title + artistSim*w.artist + albumSim*w.album +
		durationSim*w.duration + trackNumSim*w.trackNumber + yearSim*w.year
	sumWeights := w.title + w.artist + w.album + w.duration + w.trackNumber + w.year

	if sumWeights == 0 {
		return 0
	}

	return roundTo(sumWeighted/sumWeights, 2)
}

// Matches reports whether TrackSim(a,b) meets threshold.
func Matches(a, b domain.Track, threshold float64) bool {
	return TrackSim(a, b) >= threshold
}
