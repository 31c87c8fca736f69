package domain

import "github.com/cockroachdb/errors"

// Kind is the closed set of error kinds a ProviderPort, the matcher, or the
// task runtime may surface. Nothing vendor-specific is allowed to escape
// past a provider adapter's boundary — everything is wrapped into one of
// these.
type Kind string

const (
	KindPlaylistNotFound  Kind = "playlist_not_found"
	KindTrackNotFound     Kind = "track_not_found"
	KindUnsupportedFeature Kind = "unsupported_feature"
	KindProviderError     Kind = "provider_error"
	KindAuthError         Kind = "auth_error"
	KindInvalidArgument   Kind = "invalid_argument"
	KindTimeout           Kind = "timeout"
)

// sentinel is a comparable base error carrying only a Kind, suitable for
// errors.Is checks once wrapped by errors.Wrap/errors.Wrapf.
type sentinel struct {
	kind Kind
}

func (s *sentinel) Error() string { return string(s.kind) }

var (
	ErrPlaylistNotFound   = &sentinel{KindPlaylistNotFound}
	ErrTrackNotFound      = &sentinel{KindTrackNotFound}
	ErrUnsupportedFeature = &sentinel{KindUnsupportedFeature}
	ErrProviderError      = &sentinel{KindProviderError}
	ErrAuthError          = &sentinel{KindAuthError}
	ErrInvalidArgument    = &sentinel{KindInvalidArgument}
	ErrTimeout            = &sentinel{KindTimeout}
)

// WithKind wraps err so that errors.Is(wrapped, s) holds for the Err*
// sentinel s of that kind (e.g. ErrAuthError for KindAuthError),
// preserving the original message and stack via cockroachdb/errors.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(joinedErr{kind: kind, cause: err}, "%s", kind)
}

// NewError builds a fresh error of the given kind with a message.
func NewError(kind Kind, msg string) error {
	return errors.Wrapf(&sentinel{kind: kind}, "%s", msg)
}

// joinedErr lets errors.Is match both the original cause and the sentinel
// for its kind.
type joinedErr struct {
	kind  Kind
	cause error
}

func (j joinedErr) Error() string { return j.cause.Error() }
func (j joinedErr) Unwrap() error { return j.cause }
func (j joinedErr) Is(target error) bool {
	s, ok := target.(*sentinel)
	return ok && s.kind == j.kind
}

// KindOf returns the Kind carried by err, if any, and whether one was found.
func KindOf(err error) (Kind, bool) {
	for _, s := range []*sentinel{
		ErrPlaylistNotFound, ErrTrackNotFound, ErrUnsupportedFeature,
		ErrProviderError, ErrAuthError, ErrInvalidArgument, ErrTimeout,
	} {
		if errors.Is(err, s) {
			return s.kind, true
		}
	}
	return "", false
}
