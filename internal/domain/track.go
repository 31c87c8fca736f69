// Package domain holds the core data model shared by the matcher, the
// provider ports, the cache, and the task runtime.
package domain

// ServiceName discriminates which provider a Track or Playlist belongs to.
// ServiceUnknown is the reserved sentinel used for synthetic reference
// tracks built from loose, provider-less metadata.
type ServiceName string

const (
	ServiceSpotify  ServiceName = "spotify"
	ServiceYouTube  ServiceName = "youtube"
	ServiceSubsonic ServiceName = "subsonic"
	ServiceDeezer   ServiceName = "deezer"
	ServiceUnknown  ServiceName = "unknown"
)

// Track is the provider-agnostic representation of a single recording.
// Two tracks are Equal iff (ServiceID, ServiceName) match; similarity is a
// separate, graded relation computed by the similarity package.
type Track struct {
	Title             string         `json:"title"`
	AlbumName         string         `json:"album_name,omitempty"`
	PrimaryArtist     string         `json:"primary_artist,omitempty"`
	AdditionalArtists []string       `json:"additional_artists,omitempty"`
	DurationSeconds   int            `json:"duration_seconds,omitempty"`
	TrackNumber       int            `json:"track_number,omitempty"`
	ReleaseYear       int            `json:"release_year,omitempty"`
	ISRC              string         `json:"isrc,omitempty"`
	MusicBrainzID     string         `json:"musicbrainz_id,omitempty"`
	ServiceID         string         `json:"service_id,omitempty"`
	ServiceName       ServiceName    `json:"service_name"`
	ServiceData       map[string]any `json:"service_data,omitempty"`
}

// Equal reports strict provider identity, not similarity.
func (t Track) Equal(other Track) bool {
	return t.ServiceID != "" && t.ServiceID == other.ServiceID && t.ServiceName == other.ServiceName
}

// HasDuration reports whether a duration was populated (spec treats 0 and
// "unset" as the same thing for closeness scoring purposes).
func (t Track) HasDuration() bool { return t.DurationSeconds != 0 }

// HasTrackNumber reports whether a track number was populated.
func (t Track) HasTrackNumber() bool { return t.TrackNumber != 0 }

// HasReleaseYear reports whether a release year was populated.
func (t Track) HasReleaseYear() bool { return t.ReleaseYear != 0 }

// Playlist is the provider-agnostic representation of a playlist. Track
// membership is deliberately not stored here — it is always fetched fresh
// from the provider.
type Playlist struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IsPublic    bool           `json:"is_public"`
	AuthorName  string         `json:"author_name,omitempty"`
	ServiceID   string         `json:"service_id"`
	ServiceName ServiceName    `json:"service_name"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// Assets holds best-effort display metadata for a track that isn't needed
// for matching but is useful for progress reporting (e.g. cover art URLs).
type Assets struct {
	CoverImageURL string `json:"cover_image_url,omitempty"`
}
