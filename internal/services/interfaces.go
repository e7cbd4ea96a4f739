package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/kinship/internal/models"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, params RegisterParams) (*AuthResult, error)
	Login(ctx context.Context, params LoginParams) (*AuthResult, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*models.SessionIdentity, bool)
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

type UserServiceInterface interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.PublicUser, error)
	SearchUsers(ctx context.Context, params SearchParams) (*SearchResult, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, patch models.UserPatch) (*models.PublicUser, error)
}

type RelationshipServiceInterface interface {
	SendFriendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.Relationship, error)
	GetUserRelationships(ctx context.Context, userID uuid.UUID) ([]models.Relationship, error)
	UpdateRelationship(ctx context.Context, relationshipID, actingUserID uuid.UUID, status models.RelationshipStatus) (*models.Relationship, error)
	RemoveRelationship(ctx context.Context, relationshipID, actingUserID uuid.UUID) error
}

var (
	_ AuthServiceInterface         = (*AuthService)(nil)
	_ UserServiceInterface         = (*UserService)(nil)
	_ RelationshipServiceInterface = (*RelationshipService)(nil)
)
