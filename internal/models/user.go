package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Bio          *string   `json:"bio"`
	Avatar       *string   `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the profile shape returned to clients and stored in the cache.
type PublicUser struct {
	ID        uuid.UUID `json:"id" validate:"required"`
	Email     string    `json:"email" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Bio       *string   `json:"bio"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserSummary is the participant profile embedded in a relationship.
type UserSummary struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Email  string    `json:"email" validate:"required"`
	Name   string    `json:"name" validate:"required"`
	Bio    *string   `json:"bio"`
	Avatar *string   `json:"avatar"`
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
}

// UserPatch is a partial profile update. Fields left unset are not written;
// Bio and Avatar set to null are cleared.
type UserPatch struct {
	Name   Optional[string] `json:"name"`
	Bio    Optional[string] `json:"bio"`
	Avatar Optional[string] `json:"avatar"`
}

func (p UserPatch) Empty() bool {
	return !p.Name.Set && !p.Bio.Set && !p.Avatar.Set
}
