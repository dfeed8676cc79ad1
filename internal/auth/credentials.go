package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is the single admin account configured for the site.
type Credentials struct {
	Email        string
	PasswordHash string // bcrypt
}

// Verify checks email and password against the configured account. Any
// mismatch yields ErrUnauthorized without revealing which part failed.
func (c Credentials) Verify(email, password string) error {
	want := strings.ToLower(strings.TrimSpace(c.Email))
	got := strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1

	// Always run bcrypt so timing does not reveal a wrong email.
	pwErr := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
	if !emailOK || pwErr != nil || want == "" {
		return ErrUnauthorized
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
