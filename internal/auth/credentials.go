package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrInvalidCredentials is returned when an admin login fails
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// CredentialChecker validates admin credentials. The default implementation
// compares a shared secret; a real identity provider can be substituted
// without touching the tally logic.
type CredentialChecker interface {
	CheckAdmin(ctx context.Context, name, password string) error
}

// SharedSecretChecker checks admin logins against a single configured secret
type SharedSecretChecker struct {
	secret string
}

// NewSharedSecretChecker creates a checker for the given secret
func NewSharedSecretChecker(secret string) *SharedSecretChecker {
	return &SharedSecretChecker{
		secret: secret,
	}
}

// CheckAdmin accepts any name with the right secret. An empty configured
// secret disables admin login entirely rather than accepting everything.
func (c *SharedSecretChecker) CheckAdmin(ctx context.Context, name, password string) error {
	if c.secret == "" {
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(c.secret)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
