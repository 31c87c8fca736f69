package http

import (
	"net/http"
	"strings"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

// BearerUserIDAuthenticator is a minimal Authenticator stand-in: it treats
// the bearer token itself as the user id. Real session/JWT issuance and
// OAuth2 link/unlink are out of core scope (spec.md §1); a production
// deployment replaces this with an Authenticator backed by its own auth
// layer. Kept here only so cmd/api has something concrete to wire.
type BearerUserIDAuthenticator struct{}

func (BearerUserIDAuthenticator) UserIDFromRequest(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) <= len(prefix) {
		return "", domain.NewError(domain.KindAuthError, "missing or malformed Authorization header")
	}
	return strings.TrimPrefix(auth, prefix), nil
}
