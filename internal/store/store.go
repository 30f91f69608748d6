// Package store provides the persistence gateway for users, refresh tokens,
// and messages. The interfaces are constructor-injected everywhere; the
// Postgres implementation is the production backend and a memory
// implementation backs the tests.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a unique constraint (username or email)
// would be violated.
var ErrDuplicate = errors.New("store: duplicate record")

// User is a registered principal. ID is the stable identity used as the
// session registry key; Username is display-only.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastSeen     time.Time
	IsActive     bool
	ImageURL     string
}

// Message is an immutable chat record joined with its author's username for
// retrieval.
type Message struct {
	ID        int64
	AuthorID  int64
	Username  string
	Content   string
	Timestamp time.Time
}

// UserStore persists user records.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// ListOthers returns every user except the given one.
	ListOthers(ctx context.Context, id int64) ([]User, error)
	UpdateProfile(ctx context.Context, id int64, email, imageURL *string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetActive(ctx context.Context, id int64, active bool) error
	TouchLastSeen(ctx context.Context, id int64) error
}

// TokenStore persists long-lived, revocable refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	// Delete revokes a refresh token, reporting whether it existed.
	Delete(ctx context.Context, token string) (bool, error)
	// Verify reports whether the token belongs to the user and is unexpired.
	Verify(ctx context.Context, token string, userID int64) (bool, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	Create(ctx context.Context, authorID int64, content string, at time.Time) error
	// ListOldestFirst returns all messages joined with their author's
	// username, ordered by timestamp ascending.
	ListOldestFirst(ctx context.Context) ([]Message, error)
}
