package models

import (
	"time"

	"github.com/google/uuid"
)

type RelationshipStatus string

const (
	RelationshipStatusPending  RelationshipStatus = "PENDING"
	RelationshipStatusAccepted RelationshipStatus = "ACCEPTED"
	RelationshipStatusBlocked  RelationshipStatus = "BLOCKED"
)

// Relationship is a directed connection between two users. The requester
// created it; only the addressee may resolve it while it is pending.
type Relationship struct {
	ID          uuid.UUID          `json:"id" validate:"required"`
	RequesterID uuid.UUID          `json:"requester_id" validate:"required"`
	AddresseeID uuid.UUID          `json:"addressee_id" validate:"required"`
	Status      RelationshipStatus `json:"status" validate:"required,oneof=PENDING ACCEPTED BLOCKED"`
	CreatedAt   time.Time          `json:"created_at" validate:"required"`
	UpdatedAt   time.Time          `json:"updated_at" validate:"required"`
	Requester   UserSummary        `json:"requester"`
	Addressee   UserSummary        `json:"addressee"`
}

// Involves reports whether userID is either participant.
func (r *Relationship) Involves(userID uuid.UUID) bool {
	return r.RequesterID == userID || r.AddresseeID == userID
}
