// Package store persists user values.
package store

import (
	"context"
	"errors"

	"valuebot/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Repository defines persistence for user values.
type Repository interface {
	// InsertValue stores a new value. When v.SourceRef was already stored,
	// the existing record is returned with created == false.
	InsertValue(ctx context.Context, v domain.NewValue) (rec *domain.UserValue, created bool, err error)

	// ListValues returns the newest values of a user first.
	ListValues(ctx context.Context, userID int64, limit int) ([]domain.UserValue, error)

	// CountValues returns the number of values stored for a user.
	CountValues(ctx context.Context, userID int64) (int, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
