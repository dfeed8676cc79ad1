package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const secret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestSessions_IssueVerify_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSessions(secret, time.Hour).WithClock(fixedClock(now))

	tok, exp, err := s.Issue("Admin@Example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("exp = %v, want %v", exp, now.Add(time.Hour))
	}

	id, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Email != "Admin@Example.com" || id.Subject != "admin@example.com" || !id.ExpiresAt.Equal(exp) {
		t.Fatalf("identity mismatch: %+v", id)
	}
}

func TestSessions_Verify_Rejects(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSessions(secret, time.Hour).WithClock(fixedClock(now))
	tok, _, _ := s.Issue("a@b.c")

	// expired
	late := NewSessions(secret, time.Hour).WithClock(fixedClock(now.Add(2 * time.Hour)))
	if _, err := late.Verify(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token accepted: %v", err)
	}

	// wrong secret
	other := NewSessions("ffffffffffffffffffffffffffffffff", time.Hour).WithClock(fixedClock(now))
	if _, err := other.Verify(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign signature accepted: %v", err)
	}

	// empty / garbage
	for _, bad := range []string{"", "  ", "not.a.jwt"} {
		if _, err := s.Verify(bad); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("garbage %q accepted: %v", bad, err)
		}
	}

	// alg=none
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := s.Verify(unsigned); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("alg=none accepted: %v", err)
	}

	// no expiry
	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: issuer})
	signed, _ := noExp.SignedString([]byte(secret))
	if _, err := s.Verify(signed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("token without exp accepted: %v", err)
	}
}

func TestSessions_FromRequest_CookieThenBearer(t *testing.T) {
	s := NewSessions(secret, time.Hour)
	tok, _, _ := s.Issue("a@b.c")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := s.FromRequest(r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("no credentials must be unauthorized")
	}

	r.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	if id, err := s.FromRequest(r); err != nil || id.Email != "a@b.c" {
		t.Fatalf("cookie session rejected: %v", err)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("Authorization", "bearer "+tok)
	if _, err := s.FromRequest(r2); err != nil {
		t.Fatalf("bearer session rejected: %v", err)
	}

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	if _, err := s.FromRequest(r3); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("basic auth must not be accepted")
	}
}

func TestCredentials_Verify(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	c := Credentials{Email: "admin@example.com", PasswordHash: string(hash)}

	if err := c.Verify(" Admin@Example.com ", "s3cret!"); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if err := c.Verify("admin@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password accepted")
	}
	if err := c.Verify("other@example.com", "s3cret!"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong email accepted")
	}
	if err := (Credentials{PasswordHash: string(hash)}).Verify("", "s3cret!"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty configured email must never match")
	}
}

func TestHashPassword_Verifies(t *testing.T) {
	h, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := (Credentials{Email: "x@y.z", PasswordHash: h}).Verify("x@y.z", "pw"); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}
