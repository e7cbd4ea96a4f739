package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/services"
	"github.com/HammerMeetNail/kinship/internal/testutil"
)

type mockAuthService struct {
	services.AuthServiceInterface
	RegisterFunc       func(ctx context.Context, params services.RegisterParams) (*services.AuthResult, error)
	LoginFunc          func(ctx context.Context, params services.LoginParams) (*services.AuthResult, error)
	LogoutFunc         func(ctx context.Context, token string) error
	GetCurrentUserFunc func(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
}

func (m *mockAuthService) Register(ctx context.Context, params services.RegisterParams) (*services.AuthResult, error) {
	return m.RegisterFunc(ctx, params)
}

func (m *mockAuthService) Login(ctx context.Context, params services.LoginParams) (*services.AuthResult, error) {
	return m.LoginFunc(ctx, params)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.LogoutFunc(ctx, token)
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	return m.GetCurrentUserFunc(ctx, userID)
}

type mockUserService struct {
	services.UserServiceInterface
	GetProfileFunc  func(ctx context.Context, id uuid.UUID) (*models.PublicUser, error)
	SearchUsersFunc func(ctx context.Context, params services.SearchParams) (*services.SearchResult, error)
	UpdateUserFunc  func(ctx context.Context, userID uuid.UUID, patch models.UserPatch) (*models.PublicUser, error)
}

func (m *mockUserService) GetProfile(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	return m.GetProfileFunc(ctx, id)
}

func (m *mockUserService) SearchUsers(ctx context.Context, params services.SearchParams) (*services.SearchResult, error) {
	return m.SearchUsersFunc(ctx, params)
}

func (m *mockUserService) UpdateUser(ctx context.Context, userID uuid.UUID, patch models.UserPatch) (*models.PublicUser, error) {
	return m.UpdateUserFunc(ctx, userID, patch)
}

type mockRelationshipService struct {
	services.RelationshipServiceInterface
	SendFriendRequestFunc    func(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.Relationship, error)
	GetUserRelationshipsFunc func(ctx context.Context, userID uuid.UUID) ([]models.Relationship, error)
	UpdateRelationshipFunc   func(ctx context.Context, relationshipID, actingUserID uuid.UUID, status models.RelationshipStatus) (*models.Relationship, error)
	RemoveRelationshipFunc   func(ctx context.Context, relationshipID, actingUserID uuid.UUID) error
}

func (m *mockRelationshipService) SendFriendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.Relationship, error) {
	return m.SendFriendRequestFunc(ctx, requesterID, addresseeID)
}

func (m *mockRelationshipService) GetUserRelationships(ctx context.Context, userID uuid.UUID) ([]models.Relationship, error) {
	return m.GetUserRelationshipsFunc(ctx, userID)
}

func (m *mockRelationshipService) UpdateRelationship(ctx context.Context, relationshipID, actingUserID uuid.UUID, status models.RelationshipStatus) (*models.Relationship, error) {
	return m.UpdateRelationshipFunc(ctx, relationshipID, actingUserID, status)
}

func (m *mockRelationshipService) RemoveRelationship(ctx context.Context, relationshipID, actingUserID uuid.UUID) error {
	return m.RemoveRelationshipFunc(ctx, relationshipID, actingUserID)
}

func testIdentity() *models.SessionIdentity {
	return &models.SessionIdentity{
		UserID:    testutil.RandomUUID(),
		Email:     testutil.RandomEmail(),
		SessionID: testutil.RandomUUID(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func withUser(req *http.Request, user *models.SessionIdentity) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), user))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testProfile(id uuid.UUID) *models.PublicUser {
	now := time.Now().UTC()
	return &models.PublicUser{ID: id, Email: "ann@example.com", Name: "Ann", CreatedAt: now, UpdatedAt: now}
}
