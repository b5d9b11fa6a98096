// Package domain holds the types shared by the bot's services.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxValueLength bounds a declared value, in runes.
const MaxValueLength = 255

var (
	ErrEmptyValue   = errors.New("value is empty")
	ErrValueTooLong = errors.New("value is too long")
)

// UserValue is one value a user has declared important.
type UserValue struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Value     string    `json:"value"`
	SourceRef string    `json:"source_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewValue is the insert request for a UserValue.
// SourceRef, when set, makes the insert idempotent.
type NewValue struct {
	UserID    int64
	Value     string
	SourceRef string
}

// NormalizeValue trims raw and checks it is a storable value.
func NormalizeValue(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", ErrEmptyValue
	}
	if utf8.RuneCountInString(v) > MaxValueLength {
		return "", ErrValueTooLong
	}
	return v, nil
}

// SourceRef builds the idempotency key of a value saved from a tool call.
func SourceRef(runID, callID string) string {
	if runID == "" && callID == "" {
		return ""
	}
	return runID + "/" + callID
}
