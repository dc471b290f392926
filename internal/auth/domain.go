package auth

import (
	"errors"
	"time"
)

// Identity is an account that can sign in. Roles live in the rbac package.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Confirmed    bool
	CreatedAt    time.Time
}

var (
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)
