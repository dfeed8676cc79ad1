// Package auth issues and verifies admin session tokens and checks the admin
// credential at login.
//
// Sessions are HS256-signed JWTs carried in an HttpOnly cookie (CookieName).
// Verification accepts the cookie first and falls back to an
// "Authorization: Bearer <token>" header for API clients.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie set at login.
const CookieName = "admin_session"

const issuer = "hesapla-admin"

// ErrUnauthorized is returned for any missing, malformed, expired or
// wrongly-signed session, and for rejected credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated admin derived from a verified session.
// Handlers pass it explicitly to services.
type Identity struct {
	Subject   string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies session tokens with a shared secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions returns a Sessions using secret as HMAC key and ttl as token lifetime.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// TTL returns the configured token lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue mints a session token for email.
func (s *Sessions) Issue(email string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strings.ToLower(email),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp.Truncate(time.Second), nil
}

// Verify parses token and returns the identity it carries.
func (s *Sessions) Verify(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrUnauthorized
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}
	id := Identity{Subject: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}

// FromRequest verifies the session carried by r (cookie, then bearer header).
func (s *Sessions) FromRequest(r *http.Request) (Identity, error) {
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		return s.Verify(ck.Value)
	}
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return s.Verify(strings.TrimSpace(parts[1]))
		}
	}
	return Identity{}, ErrUnauthorized
}
