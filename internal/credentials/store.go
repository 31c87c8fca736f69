// Package credentials implements ports.CredentialStore over Redis and a
// ports.DriverFactory that lazily refreshes OAuth2 credentials before
// constructing a provider driver, per spec.md §5 and §7's "AuthError
// triggers credential deletion for OAuth providers" rule.
package credentials

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/ports"
)

// kv is the narrow Redis surface this package depends on, mirroring the
// seam internal/taskstore already establishes for its own Redis needs.
// *taskstore.RedisAdapter satisfies it structurally.
type kv interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Store persists credentials keyed by user and provider. A credential has
// no TTL of its own: expiry is tracked in-band via Credential.ExpiresAtUTC
// and enforced by the lazy-refresh logic in factory.go, not by Redis.
type Store struct {
	redis kv
}

// New builds a Store over a kv implementation.
func New(redis kv) *Store {
	return &Store{redis: redis}
}

var _ ports.CredentialStore = (*Store)(nil)

func credentialKey(userID string, provider domain.ServiceName) string {
	return "user_credentials:" + string(provider) + ":" + userID
}

// Get loads a user's stored credential for provider. Absence is reported
// as a domain.KindAuthError, since every call site needs a credential to
// proceed and has no sensible fallback.
func (s *Store) Get(ctx context.Context, userID string, provider domain.ServiceName) (ports.Credential, error) {
	raw, found, err := s.redis.Get(ctx, credentialKey(userID, provider))
	if err != nil {
		return ports.Credential{}, errors.Wrap(err, "credentials: load")
	}
	if !found {
		return ports.Credential{}, domain.NewError(domain.KindAuthError, "no stored credential for "+string(provider))
	}

	var cred ports.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return ports.Credential{}, errors.Wrap(err, "credentials: decode")
	}
	return cred, nil
}

// Save writes (or overwrites) a user's credential for provider.
func (s *Store) Save(ctx context.Context, userID string, provider domain.ServiceName, cred ports.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return errors.Wrap(err, "credentials: encode")
	}
	if err := s.redis.Set(ctx, credentialKey(userID, provider), string(raw), 0); err != nil {
		return errors.Wrap(err, "credentials: save")
	}
	return nil
}

// Delete removes a user's stored credential for provider. Called when a
// refresh attempt fails with an unrecoverable auth error, so the user is
// forced back through the linking flow rather than retried forever.
func (s *Store) Delete(ctx context.Context, userID string, provider domain.ServiceName) error {
	if err := s.redis.Delete(ctx, credentialKey(userID, provider)); err != nil {
		return errors.Wrap(err, "credentials: delete")
	}
	return nil
}
