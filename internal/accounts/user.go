package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidEmail = errors.New("invalid email")
	ErrInvalidToken = errors.New("invalid or used verification token")
)

// User is a registered account. PasswordHash is opaque to this service.
type User struct {
	ID                uuid.UUID
	Email             string
	PasswordHash      string
	EmailVerified     bool
	VerificationToken string
	CreatedAt         time.Time
}

// Repository persists users.
type Repository interface {
	// CreateUser stores a new user. Returns ErrEmailTaken if the email exists.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// VerifyEmail marks the user holding token as verified and consumes the token.
	// Returns ErrInvalidToken when no unverified user holds it.
	VerifyEmail(ctx context.Context, token string) (*User, error)
}
