package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/kinship/internal/apperror"
	"github.com/HammerMeetNail/kinship/internal/logging"
	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/validation"
)

var ErrInvalidCredentials = apperror.New(apperror.KindUnauthenticated, "Invalid email or password")

var bcryptCost = 10

var (
	hashPassword = func(password string) (string, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(hash), nil
	}
	checkPassword = func(hash, password string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
)

type RegisterParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

type LoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	User  *models.PublicUser `json:"user"`
	Token string             `json:"token"`
}

type AuthService struct {
	db         DB
	users      *UserService
	sessions   *SessionStore
	sessionTTL time.Duration
}

func NewAuthService(db DB, users *UserService, sessions *SessionStore, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionDuration
	}
	return &AuthService{db: db, users: users, sessions: sessions, sessionTTL: sessionTTL}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	hash, err := hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	// The account and its first session commit together, so a failed session
	// insert leaves no account behind to block a retry.
	var user *models.User
	var session *models.Session
	err = withTx(ctx, s.db, "registration", func(tx Tx) error {
		var err error
		user, err = insertUser(ctx, tx, models.CreateUserParams{
			Email:        params.Email,
			PasswordHash: hash,
			Name:         params.Name,
		})
		if err != nil {
			return err
		}
		session, err = s.sessions.insert(ctx, tx, user.ID, user.Email, s.sessionTTL)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.sessions.remember(ctx, session, user.Email)

	logging.Info("User registered", map[string]interface{}{
		"user_id": user.ID.String(),
	})
	return &AuthResult{User: user.Public(), Token: session.Token}, nil
}

// Login verifies credentials, revokes every existing session of the user and
// issues a new one.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, params.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !checkPassword(user.PasswordHash, params.Password) {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return nil, err
	}
	session, err := s.sessions.Create(ctx, user.ID, user.Email, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user.Public(), Token: session.Token}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.SessionIdentity, bool) {
	return s.sessions.Lookup(ctx, token)
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	return s.users.GetProfile(ctx, userID)
}

// CleanupExpiredSessions is run periodically by the server.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.CleanupExpired(ctx)
}
