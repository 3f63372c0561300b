package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionIssued              EventType = "session_issued"
	EventSessionRefreshed           EventType = "session_refreshed"
	EventSessionRevoked             EventType = "session_revoked"
	EventEmailVerificationRequested EventType = "email_verification_requested"
	EventEmailVerified              EventType = "email_verified"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh ID and the current UTC time.
func NewEvent(eventType EventType, userID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionIssuedPayload payload.
type SessionIssuedPayload struct {
	Source       string    `json:"source"`
	TokenVersion int64     `json:"token_version"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionRevokedPayload payload.
type SessionRevokedPayload struct {
	TokenVersion int64 `json:"token_version"`
}

// EmailVerificationRequestedPayload carries the one-time token to deliver.
type EmailVerificationRequestedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EmailVerifiedPayload payload.
type EmailVerifiedPayload struct {
	Email string `json:"email"`
}
