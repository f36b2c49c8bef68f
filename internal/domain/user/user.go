// Package user holds the user identity entity and its persistence contract.
package user

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Sentinel errors returned by Repository implementations.
var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

// User is a registered account. PasswordHash is a bcrypt hash; the plaintext
// password never reaches storage.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
}

// Repository defines persistence operations for users.
type Repository interface {
	// Create persists a new user. It returns ErrAlreadyExists when the name
	// is already taken.
	Create(ctx context.Context, u *User) error
	// FindByName returns the user with the given unique name, or ErrNotFound.
	FindByName(ctx context.Context, name string) (*User, error)
	// FindByID returns the user with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}
