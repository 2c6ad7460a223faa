// Package user provides the User entity and repository interfaces for the
// identity layer. Credential verification lives in the auth package; this
// package only persists accounts.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Static errors for user operations.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailInUse is returned when registering an already-registered email.
	ErrEmailInUse = errors.New("email already in use")
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier for this user.
	ID string
	// Email is the login identifier, unique across users.
	Email string
	// Username is an optional display name.
	Username string
	// PasswordHash is the bcrypt hash of the password. Never serialized.
	PasswordHash string
	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// New creates a User with a generated ID.
func New(email, username, passwordHash string) *User {
	return &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
}

// Clone creates a copy of the user for safe reads.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Repository defines the interface for user persistence.
type Repository interface {
	// Create persists a new user.
	// Returns ErrEmailInUse if the email is already registered.
	Create(ctx context.Context, u *User) error

	// FindByEmail retrieves a user by email.
	// Returns ErrUserNotFound if no user has the email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	FindByID(ctx context.Context, id string) (*User, error)
}
