// Package auth verifies sessions issued by the external identity provider.
//
// The identity provider signs HS256 access tokens for its users. TaskFlow
// never issues sessions in production; it only checks the signature, the
// expiry, and reads the subject, email and user metadata.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
)

// CookieName is the cookie the identity provider's web client stores the access token in.
const CookieName = "sb-access-token"

// Session is the authenticated caller of a request.
type Session struct {
	UserID   string
	Email    string
	Metadata map[string]any
}

// MetadataString returns a string value from the user metadata, or "".
func (s *Session) MetadataString(key string) string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	v, _ := s.Metadata[key].(string)
	return v
}

// Authenticator extracts a session from a request.
// It returns an error wrapping apperr.ErrUnauthorized when there is none.
type Authenticator interface {
	Authenticate(r *http.Request) (*Session, error)
}

type claims struct {
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret   []byte
	audience string
}

// NewJWTAuthenticator creates an authenticator. audience is checked when non-empty.
func NewJWTAuthenticator(secret, audience string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTAuthenticator{secret: []byte(secret), audience: audience}, nil
}

// Authenticate reads the bearer token or session cookie and verifies it.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Session, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return nil, fmt.Errorf("%w: no session token", apperr.ErrUnauthorized)
	}
	return a.Verify(raw)
}

// Verify parses and validates a raw token string.
func (a *JWTAuthenticator) Verify(raw string) (*Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
	}

	return &Session{UserID: c.Subject, Email: c.Email, Metadata: c.UserMetadata}, nil
}

// Issue signs a token for sess. Used by tests and local tooling that stand
// in for the identity provider.
func (a *JWTAuthenticator) Issue(sess *Session, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Email:        sess.Email,
		UserMetadata: sess.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		c.Audience = jwt.ClaimStrings{a.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session stored by the middleware, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(ctxKey{}).(*Session)
	return sess
}

// IsUnauthorized reports whether err means "no valid session".
func IsUnauthorized(err error) bool {
	return errors.Is(err, apperr.ErrUnauthorized)
}
