package domain

import "time"

// State is the conversation state of one user.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingValue State = "awaiting_value"
)

// Session is the ephemeral per-user conversation state.
// The zero value (besides UserID) is an idle session with no threads.
type Session struct {
	UserID         int64     `json:"user_id"`
	State          State     `json:"state"`
	ValuesThreadID string    `json:"values_thread_id,omitempty"`
	ChatThreadID   string    `json:"chat_thread_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSession returns an idle session for userID.
func NewSession(userID int64) Session {
	return Session{UserID: userID, State: StateIdle}
}

// Awaiting reports whether the user is expected to declare a value.
func (s Session) Awaiting() bool {
	return s.State == StateAwaitingValue
}
