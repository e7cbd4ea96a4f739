package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/kinship/internal/logging"
	"github.com/HammerMeetNail/kinship/internal/models"
)

const DefaultSessionDuration = 7 * 24 * time.Hour

var sessionDurationPattern = regexp.MustCompile(`^(\d+)([dhms])$`)

// ParseSessionDuration reads strings like "7d", "12h", "30m" or "45s".
// Anything else, including zero, yields DefaultSessionDuration.
func ParseSessionDuration(value string) time.Duration {
	match := sessionDurationPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return DefaultSessionDuration
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || n <= 0 {
		return DefaultSessionDuration
	}

	var unit time.Duration
	switch match[2] {
	case "d":
		unit = 24 * time.Hour
	case "h":
		unit = time.Hour
	case "m":
		unit = time.Minute
	default:
		unit = time.Second
	}
	if n > int64(math.MaxInt64/unit) {
		return DefaultSessionDuration
	}
	return time.Duration(n) * unit
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionStore owns the sessions table. Tokens are signed JWTs whose exp
// matches the row's expires_at; the row is what makes a token valid.
type SessionStore struct {
	db     DBConn
	cache  *Cache
	secret []byte
	now    func() time.Time
}

func NewSessionStore(db DBConn, cache *Cache, secret string) *SessionStore {
	return &SessionStore{db: db, cache: cache, secret: []byte(secret), now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (*models.Session, error) {
	session, err := s.insert(ctx, s.db, userID, email, ttl)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, session, email)
	return session, nil
}

// insert writes the session row through q without touching the cache, so it
// can take part in a caller's transaction.
func (s *SessionStore) insert(ctx context.Context, q DBConn, userID uuid.UUID, email string, ttl time.Duration) (*models.Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionDuration
	}
	now := s.now()
	// JWT NumericDate has second precision; keep the row in step with exp.
	expiresAt := now.Add(ttl).Truncate(time.Second)

	token, err := s.sign(userID, email, now, expiresAt)
	if err != nil {
		return nil, err
	}

	session := &models.Session{UserID: userID, Token: token, ExpiresAt: expiresAt}
	err = q.QueryRow(ctx,
		`INSERT INTO sessions (user_id, token, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		userID, token, expiresAt,
	).Scan(&session.ID, &session.CreatedAt)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// remember caches a session once its row is durable.
func (s *SessionStore) remember(ctx context.Context, session *models.Session, email string) {
	s.cache.SetSession(ctx, session.Token, &models.SessionIdentity{
		UserID:    session.UserID,
		Email:     email,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	})
}

// Lookup resolves a token to its session. Any failure reads as absent.
func (s *SessionStore) Lookup(ctx context.Context, token string) (*models.SessionIdentity, bool) {
	if token == "" {
		return nil, false
	}
	claims, err := s.parse(token)
	if err != nil {
		logging.Debug("Rejected session token", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	if identity, ok := s.cache.GetSession(ctx, token); ok {
		if identity.UserID.String() == claims.Subject {
			return identity, true
		}
		s.cache.InvalidateSession(ctx, token, identity.UserID)
	}

	identity := &models.SessionIdentity{}
	err = s.db.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.expires_at, u.email
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token = $1`,
		token,
	).Scan(&identity.SessionID, &identity.UserID, &identity.ExpiresAt, &identity.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		logging.Error("Failed to load session", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}
	if identity.Expired(s.now()) {
		return nil, false
	}

	s.cache.SetSession(ctx, token, identity)
	return identity, true
}

// Delete removes a single session. An unknown token is not an error.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx,
		`DELETE FROM sessions WHERE token = $1 RETURNING user_id`,
		token,
	).Scan(&userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.cache.InvalidateSession(ctx, token, userID)
	return nil
}

func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	s.cache.InvalidateUserSessions(ctx, userID)
	return result.RowsAffected(), nil
}

// CleanupExpired removes rows already past expiry. Cached copies never
// outlive expires_at, so nothing needs invalidating.
func (s *SessionStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *SessionStore) sign(userID uuid.UUID, email string, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return token, nil
}

func (s *SessionStore) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	return claims, nil
}
