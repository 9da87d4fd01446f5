package store

import (
	"context"
	"errors"
	"time"
)

// DirectCode is the reserved meeting-code sentinel stored on direct messages.
// It is not a valid room code, so direct messages never surface in room history.
const DirectCode = "_DM_"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint (username, email) is violated.
var ErrDuplicate = errors.New("already exists")

// User represents a registered identity.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string // empty when unset (NULL in storage)
	Bio          string // empty when unset (NULL in storage)
	CreatedAt    time.Time
}

// Message is a persisted chat message. ReceiverID is nil for room messages;
// direct messages carry the receiver and the DirectCode sentinel as MeetingCode.
type Message struct {
	ID          int64
	SenderID    int64
	ReceiverID  *int64
	Content     string
	MeetingCode string
	CreatedAt   time.Time
}

// HistoryEntry is one row of a bounded history query, joined with the sender's
// username for wire serialization.
type HistoryEntry struct {
	SenderUsername string
	Content        string
	Timestamp      time.Time
}

// IdentityStore verifies and mutates identities and profiles.
type IdentityStore interface {
	// CreateUser inserts a new identity. Returns ErrDuplicate if the username
	// or email is already taken.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByUsername retrieves an identity, or ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateAvatarURL sets the avatar URL; empty string clears it.
	UpdateAvatarURL(ctx context.Context, userID int64, url string) error

	// UpdateBio sets the bio; empty string clears it.
	UpdateBio(ctx context.Context, userID int64, bio string) error
}

// HistoryStore persists messages and answers bounded history queries.
type HistoryStore interface {
	// SaveMessage persists a message. The message is never mutated afterwards.
	SaveMessage(ctx context.Context, msg *Message) error

	// RoomHistory returns up to limit room messages for a meeting code,
	// oldest first within the most-recent window. Direct messages are excluded.
	RoomHistory(ctx context.Context, meetingCode string, limit int) ([]HistoryEntry, error)

	// DirectHistory returns up to limit direct messages exchanged between the
	// two users in either direction, oldest first within the most-recent window.
	DirectHistory(ctx context.Context, userID1, userID2 int64, limit int) ([]HistoryEntry, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	IdentityStore
	HistoryStore

	// Close closes the underlying database connection.
	Close() error
}
