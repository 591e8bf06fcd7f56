// Package session holds the viewer's credential and identity.
// A Session is built once at start and passed to every component that
// issues authenticated requests; nothing reads credentials from globals.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingCredential is the cause of the Unauthorized error raised, before any
// request is made, when an operation needs a credential and none is usable.
var ErrMissingCredential = errors.New("authentication required")

// Credential is a bearer token plus the claims read from it.
type Credential struct {
	token   string
	subject string
	expires time.Time // zero when the token carries no exp claim
}

// ParseCredential wraps a bearer token.
// JWTs are parsed without verification to read sub and exp; the backend
// is the one verifying signatures. Opaque tokens are accepted as-is and
// never expire locally.
func ParseCredential(token string) Credential {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	c := Credential{token: token}
	if token == "" {
		return c
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return c
	}
	if sub, err := claims.GetSubject(); err == nil {
		c.subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.expires = exp.Time
	}
	return c
}

// Token returns the raw bearer token.
func (c Credential) Token() string { return c.token }

// Subject returns the sub claim, empty for opaque tokens.
func (c Credential) Subject() string { return c.subject }

// ExpiresAt returns the exp claim, zero when absent.
func (c Credential) ExpiresAt() time.Time { return c.expires }

// Valid reports whether the credential can be sent at time now.
func (c Credential) Valid(now time.Time) bool {
	if c.token == "" {
		return false
	}
	return c.expires.IsZero() || now.Before(c.expires)
}

// Session is the viewer context shared by the engine components.
type Session struct {
	Credential Credential
	User       string // Viewer id, used to scope the push channel and snapshots
}

// New builds a session from a bearer token. The user id comes from the
// token subject, falling back to the given id.
func New(token, fallbackUser string) Session {
	cred := ParseCredential(token)
	user := cred.Subject()
	if user == "" {
		user = fallbackUser
	}
	return Session{Credential: cred, User: user}
}

// Anonymous returns a session with no credential.
func Anonymous() Session { return Session{} }

// Authenticated reports whether the session holds a usable credential at now.
func (s Session) Authenticated(now time.Time) bool {
	return s.Credential.Valid(now)
}
