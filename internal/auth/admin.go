package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/nerrad567/meshgate-core/internal/apperr"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
)

// Sentinel errors for admin authentication.
var (
	ErrInvalidCredentials = apperr.E(apperr.KindUnauthorized, "invalid credentials")
	ErrTokenInvalid       = apperr.E(apperr.KindUnauthorized, "invalid token")
)

// Admin checks the fixed administrative identity.
// It is built once from configuration and never mutated.
type Admin struct {
	username     string
	passwordHash string
}

// NewAdmin creates an Admin from configuration. The password hash must be
// a valid argon2id PHC string.
func NewAdmin(cfg config.AdminConfig) (*Admin, error) {
	if cfg.Username == "" {
		return nil, errors.New("admin username is empty")
	}
	if _, err := decodePHC(cfg.PasswordHash); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &Admin{username: cfg.Username, passwordHash: cfg.PasswordHash}, nil
}

// Username returns the configured admin username.
func (a *Admin) Username() string {
	return a.username
}

// Login verifies a username and password pair. The password hash is
// always evaluated so a wrong username costs the same as a wrong password.
func (a *Admin) Login(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	passOK, err := VerifyPassword(password, a.passwordHash)
	if err != nil {
		return fmt.Errorf("verifying admin password: %w", err)
	}

	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}
