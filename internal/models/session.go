package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionIdentity is what a valid token resolves to.
type SessionIdentity struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	Email     string    `json:"email" validate:"required"`
	SessionID uuid.UUID `json:"session_id" validate:"required"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

func (s *SessionIdentity) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
