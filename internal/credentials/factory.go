package credentials

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
	"github.com/jpp0ca/tunesync-core/internal/providers/deezer"
	"github.com/jpp0ca/tunesync-core/internal/providers/spotify"
	"github.com/jpp0ca/tunesync-core/internal/providers/subsonic"
	"github.com/jpp0ca/tunesync-core/internal/providers/youtube"
)

var spotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// ProviderSettings carries the deploy-time configuration a Factory needs
// per provider: OAuth2 client credentials for Spotify/YouTube, and the
// fixed (non-per-user) deployment settings for Subsonic.
type ProviderSettings struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	YouTubeClientID     string
	YouTubeClientSecret string
	SubsonicBaseURL     string
	SubsonicClientID    string
}

// Factory implements ports.DriverFactory. For OAuth2-based providers
// (Spotify, YouTube) it refreshes the stored token if it's within
// expirySkew of expiry or past it and persists the refreshed token back to
// the store before handing the caller a driver; a failed refresh deletes
// the stored credential. Subsonic's credential bundle carries a
// username/password pair packed into the opaque Credential fields, and
// Deezer's carries only the ARL session cookie — neither participates in
// OAuth2 refresh, and this package never deletes either of them.
type Factory struct {
	store    ports.CredentialStore
	settings ProviderSettings
}

// NewFactory builds a Factory over a credential store and static
// per-provider settings.
func NewFactory(store ports.CredentialStore, settings ProviderSettings) *Factory {
	return &Factory{store: store, settings: settings}
}

var _ ports.DriverFactory = (*Factory)(nil)

// expirySkew is how far ahead of the stored expiry a token is treated as
// already expired, so a request doesn't race a token that dies mid-flight.
const expirySkew = 60 * time.Second

// timeNow is a seam for tests to control the clock the expiry check reads.
var timeNow = time.Now

func (f *Factory) Build(ctx context.Context, userID string, provider domain.ServiceName) (ports.ProviderPort, error) {
	switch provider {
	case domain.ServiceSpotify:
		return f.buildOAuth2(ctx, userID, provider, f.settings.SpotifyClientID, f.settings.SpotifyClientSecret, spotifyEndpoint, []string{
			"playlist-read-private", "playlist-modify-private", "playlist-modify-public", "user-library-read",
		}, func(client *http.Client) ports.ProviderPort {
			return spotify.New(client, "US")
		})
	case domain.ServiceYouTube:
		return f.buildOAuth2(ctx, userID, provider, f.settings.YouTubeClientID, f.settings.YouTubeClientSecret, google.Endpoint, []string{
			"https://www.googleapis.com/auth/youtube",
		}, func(client *http.Client) ports.ProviderPort {
			return youtube.New(client)
		})
	case domain.ServiceSubsonic:
		return f.buildSubsonic(ctx, userID)
	case domain.ServiceDeezer:
		return f.buildDeezer(ctx, userID)
	default:
		return nil, domain.NewError(domain.KindUnsupportedFeature, "no driver factory registered for "+string(provider))
	}
}

func (f *Factory) buildOAuth2(
	ctx context.Context,
	userID string,
	provider domain.ServiceName,
	clientID, clientSecret string,
	endpoint oauth2.Endpoint,
	scopes []string,
	build func(*http.Client) ports.ProviderPort,
) (ports.ProviderPort, error) {
	cred, err := f.store.Get(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Unix(cred.ExpiresAtUTC, 0),
	}

	if token.Expiry.Add(-expirySkew).Before(timeNow()) {
		refreshed, err := cfg.TokenSource(ctx, token).Token()
		if err != nil {
			// Refresh failed: the stored credential can no longer be used,
			// so delete it and force the user back through linking.
			_ = f.store.Delete(ctx, userID, provider)
			return nil, domain.WithKind(domain.KindAuthError, errors.Wrapf(err, "%s: refresh token", provider))
		}
		token = refreshed
		if err := f.store.Save(ctx, userID, provider, ports.Credential{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAtUTC: token.Expiry.Unix(),
		}); err != nil {
			return nil, errors.Wrapf(err, "%s: persist refreshed token", provider)
		}
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	return build(client), nil
}

// buildSubsonic reads the user's Subsonic username/password, packed into
// Credential.AccessToken/RefreshToken since Subsonic has no OAuth2 flow of
// its own (spec.md §4.3's capability table; there's nothing to refresh).
func (f *Factory) buildSubsonic(ctx context.Context, userID string) (ports.ProviderPort, error) {
	cred, err := f.store.Get(ctx, userID, domain.ServiceSubsonic)
	if err != nil {
		return nil, err
	}
	return subsonic.New(http.DefaultClient, subsonic.Config{
		BaseURL:  f.settings.SubsonicBaseURL,
		Username: cred.AccessToken,
		Password: cred.RefreshToken,
	}), nil
}

// buildDeezer reads the user's ARL session cookie, packed into
// Credential.AccessToken. Deezer has no refresh token either: an ARL the
// driver rejects fails the build with an AuthError, and the stored
// credential is left in place.
func (f *Factory) buildDeezer(ctx context.Context, userID string) (ports.ProviderPort, error) {
	cred, err := f.store.Get(ctx, userID, domain.ServiceDeezer)
	if err != nil {
		return nil, err
	}
	driver, err := deezer.New(cred.AccessToken)
	if err != nil {
		return nil, domain.WithKind(domain.KindAuthError, errors.Wrap(err, "deezer: build driver"))
	}
	return driver, nil
}
