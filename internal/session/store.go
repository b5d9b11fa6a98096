// Package session keeps per-user conversation state.
package session

import (
	"context"

	"valuebot/internal/domain"
)

// Store is a key-value store of sessions keyed by user id.
type Store interface {
	// GetOrCreate returns the user's session, or a fresh idle one.
	GetOrCreate(ctx context.Context, userID int64) (domain.Session, error)

	// Save replaces the stored session.
	Save(ctx context.Context, s domain.Session) error

	// Reset drops all state of the user.
	Reset(ctx context.Context, userID int64) error

	// Len returns the number of stored sessions.
	Len(ctx context.Context) (int, error)

	Close() error
}
