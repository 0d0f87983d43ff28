package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrAuthDenied is the root of every denial.
var ErrAuthDenied = errors.New("access denied")

// Denial reasons.
var (
	ErrMissingCredential = denial("missing credential")
	ErrInvalidCredential = denial("invalid credential")
	ErrMisconfigured     = denial("server misconfigured: no API key set")
)

type deniedError struct{ reason string }

func denial(reason string) error { return &deniedError{reason: reason} }

func (e *deniedError) Error() string { return e.reason }

func (e *deniedError) Unwrap() error { return ErrAuthDenied }

// Guard checks bearer credentials against one configured secret. The zero
// Guard denies everything.
type Guard struct {
	secret []byte
}

func NewGuard(secret string) *Guard {
	return &Guard{secret: []byte(secret)}
}

// Configured reports whether a secret is set.
func (g *Guard) Configured() bool {
	return g != nil && len(g.secret) > 0
}

// Authorize validates the value of an Authorization header. It returns nil
// when access is allowed, otherwise one of the denial errors.
func (g *Guard) Authorize(header string) error {
	token, ok := bearerToken(header)
	if !ok {
		return ErrMissingCredential
	}
	if !g.Configured() {
		return ErrMisconfigured
	}
	if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
		return ErrInvalidCredential
	}
	return nil
}

// bearerToken extracts the token of a "Bearer <token>" header. The scheme
// is case-insensitive, the token is not.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
