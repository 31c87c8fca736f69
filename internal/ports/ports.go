// Package ports defines the interfaces the matcher, the cache, and the
// task runtime consume — the uniform vocabulary every provider adapter
// must implement (spec.md §4.3).
package ports

import (
	"context"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

// ProviderPort is the contract every streaming-service adapter implements.
// All operations may fail with the closed error kinds in domain/errors.go.
type ProviderPort interface {
	// Name returns the provider identifier, e.g. "spotify".
	Name() domain.ServiceName

	// SupportsDirectISRCQuerying reports whether GetTrackByISRC is usable.
	SupportsDirectISRCQuerying() bool

	// SupportsMusicBrainzIDQuerying reports whether searching by
	// MusicBrainz id via SearchTracks is meaningful for this provider.
	SupportsMusicBrainzIDQuerying() bool

	GetUserPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (domain.Playlist, error)
	// GetPlaylistTracks returns all tracks, in order. limit == 0 means
	// "all reasonable" — providers that can't express that natively must
	// translate it into their own pagination internally.
	GetPlaylistTracks(ctx context.Context, id string, limit int) ([]domain.Track, error)
	CreatePlaylist(ctx context.Context, name string) (domain.Playlist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
	GetTrack(ctx context.Context, id string) (domain.Track, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error)
	GetTrackByISRC(ctx context.Context, isrc string) (domain.Track, error)
	GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error)
	GetRandomTrack(ctx context.Context) (*domain.Track, error)
}

// AssetResolver is an optional capability a ProviderPort may additionally
// satisfy, used by the transfer handler to enrich progress snapshots with
// display metadata that isn't needed for matching (spec_full.md
// "Supplemented features" #1).
type AssetResolver interface {
	GetTrackAssets(ctx context.Context, track domain.Track) (domain.Assets, error)
}

// Mapper translates a single vendor payload shape into the domain model.
// Implementations must reject a nil payload with domain.ErrInvalidArgument
// and must be total on the documented vendor schema.
type Mapper[T any] interface {
	MapTrack(payload T) (domain.Track, error)
}

// CredentialStore is the narrow port each provider driver uses to fetch
// (and, on refresh failure, invalidate) a user's stored OAuth2 credentials.
// Password hashing, linking/unlinking flows, and encrypted storage itself
// are out of core scope (spec.md §1) — this is the seam the core depends
// on.
type CredentialStore interface {
	Get(ctx context.Context, userID string, provider domain.ServiceName) (Credential, error)
	Delete(ctx context.Context, userID string, provider domain.ServiceName) error
	Save(ctx context.Context, userID string, provider domain.ServiceName, cred Credential) error
}

// Credential is an opaque-to-the-core OAuth2 credential bundle.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAtUTC int64
}

// MusicBrainzClient resolves a MusicBrainz recording id from loose track
// metadata. Failures are swallowed to ("", nil) by implementations, per
// spec.md §6.
type MusicBrainzClient interface {
	IDFromISRC(ctx context.Context, isrc string) (string, error)
	IDFromQuery(ctx context.Context, artist, title string, year int, isrc string) (string, error)
}

// DriverFactory constructs a ready-to-use ProviderPort for a given user and
// provider, performing lazy credential refresh as needed (spec.md §4.8
// step 1, §5 "Credential refresh"). Construction failure surfaces as a
// domain.KindAuthError or domain.KindProviderError, or as
// domain.KindUnsupportedFeature for a provider with no driver.
type DriverFactory interface {
	Build(ctx context.Context, userID string, provider domain.ServiceName) (ProviderPort, error)
}
