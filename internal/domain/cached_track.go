package domain

// CachedTrack is the persistent identity of a single logical recording,
// independent of which provider(s) it has been observed on.
type CachedTrack struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	AlbumName       string   `json:"album_name,omitempty"`
	PrimaryArtist   string   `json:"primary_artist,omitempty"`
	Collaborators   []string `json:"collaborators,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	TrackNumber     int      `json:"track_number,omitempty"`
	ReleaseYear     int      `json:"release_year,omitempty"`
	ISRC            string   `json:"isrc,omitempty"`
	MusicBrainzID   string   `json:"musicbrainz_id,omitempty"`
}

// ProviderMapping realizes a CachedTrack on a specific provider. The
// composite key is (TrackID, Provider, ProviderTrackID); lookups are
// indexed by (Provider, ProviderTrackID) and, when an ISRC is known, by
// (Provider, ISRC).
type ProviderMapping struct {
	TrackID         string      `json:"track_id"`
	Provider        ServiceName `json:"provider"`
	ProviderTrackID string      `json:"provider_track_id"`
}

// ToTrack reconstructs a Track from a cached identity and its realization on
// a given provider, so downstream callers see correct per-provider
// identity even though the metadata came from the shared cache entry.
func (c CachedTrack) ToTrack(provider ServiceName, providerTrackID string) Track {
	return Track{
		Title:           c.Title,
		AlbumName:       c.AlbumName,
		PrimaryArtist:   c.PrimaryArtist,
		AdditionalArtists: c.Collaborators,
		DurationSeconds: c.DurationSeconds,
		TrackNumber:     c.TrackNumber,
		ReleaseYear:     c.ReleaseYear,
		ISRC:            c.ISRC,
		MusicBrainzID:   c.MusicBrainzID,
		ServiceID:       providerTrackID,
		ServiceName:     provider,
	}
}

// FromTrack captures the provider-independent identity fields of a Track
// into a CachedTrack, ready to be upserted by the cache layer.
func FromTrack(t Track) CachedTrack {
	return CachedTrack{
		Title:           t.Title,
		AlbumName:       t.AlbumName,
		PrimaryArtist:   t.PrimaryArtist,
		Collaborators:   t.AdditionalArtists,
		DurationSeconds: t.DurationSeconds,
		TrackNumber:     t.TrackNumber,
		ReleaseYear:     t.ReleaseYear,
		ISRC:            t.ISRC,
		MusicBrainzID:   t.MusicBrainzID,
	}
}
