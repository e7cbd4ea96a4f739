package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/HammerMeetNail/kinship/internal/apperror"
	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/validation"
)

var (
	ErrUserNotFound       = apperror.New(apperror.KindNotFound, "User not found")
	ErrEmailAlreadyExists = apperror.New(apperror.KindConflict, "User with this email already exists")
)

const (
	DefaultSearchPageSize = 20
	MaxSearchPageSize     = 100

	// MaxSearchPage bounds page so (page-1)*limit cannot overflow the OFFSET.
	MaxSearchPage = math.MaxInt32
)

const userColumns = `id, email, password_hash, name, bio, avatar, created_at, updated_at`

type SearchParams struct {
	Query         string
	Page          int
	PageSize      int
	ExcludeUserID *uuid.UUID
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type SearchResult struct {
	Users      []models.PublicUser `json:"users"`
	Pagination Pagination          `json:"pagination"`
}

type profileUpdate struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio    *string `json:"bio" validate:"omitempty,max=500"`
	Avatar *string `json:"avatar" validate:"omitempty,url"`
}

type UserService struct {
	db    DBConn
	cache *Cache
}

func NewUserService(db DBConn, cache *Cache) *UserService {
	return &UserService{db: db, cache: cache}
}

func insertUser(ctx context.Context, q DBConn, params models.CreateUserParams) (*models.User, error) {
	var exists bool
	err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", params.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking email existence: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	user := &models.User{}
	err = q.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.Name,
	).Scan(userScanDest(user)...)
	if pgErrorCode(err) == pgUniqueViolation {
		// Lost a race with a concurrent registration.
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(userScanDest(user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	).Scan(userScanDest(user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	return user, nil
}

// GetProfile is the read-through cached public profile.
func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	if cached, ok := s.cache.GetUserProfile(ctx, id); ok {
		return cached, nil
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	s.cache.SetUserProfile(ctx, profile)
	return profile, nil
}

// SearchUsers matches query case-insensitively against name or email, newest
// first. The page and the total count are fetched concurrently.
func (s *UserService) SearchUsers(ctx context.Context, params SearchParams) (*SearchResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.PageSize
	if limit < 1 {
		limit = DefaultSearchPageSize
	}
	if limit > MaxSearchPageSize {
		limit = MaxSearchPageSize
	}

	var conditions []string
	var args []any
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conditions = append(conditions, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\')`, len(args), len(args)))
	}
	if params.ExcludeUserID != nil {
		args = append(args, *params.ExcludeUserID)
		conditions = append(conditions, fmt.Sprintf(`id <> $%d`, len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var users []models.PublicUser
	var total int

	g, gctx := errgroup.WithContext(ctx)
	// No row can sit past MaxSearchPage, so only the count is needed there.
	if page <= MaxSearchPage {
		g.Go(func() error {
			offset := int64(page-1) * int64(limit)
			pageArgs := append(append([]any{}, args...), limit, offset)
			rows, err := s.db.Query(gctx,
				fmt.Sprintf(`SELECT id, email, name, bio, avatar, created_at, updated_at
				 FROM users%s
				 ORDER BY created_at DESC
				 LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2),
				pageArgs...,
			)
			if err != nil {
				return fmt.Errorf("searching users: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				var u models.PublicUser
				if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
					return fmt.Errorf("scanning user: %w", err)
				}
				users = append(users, u)
			}
			if err := rows.Err(); err != nil {
				return fmt.Errorf("iterating users: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := s.db.QueryRow(gctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if users == nil {
		users = []models.PublicUser{}
	}
	return &SearchResult{
		Users: users,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// UpdateUser writes only the fields present in patch. A null bio or avatar
// clears it; a null name is rejected.
func (s *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, patch models.UserPatch) (*models.PublicUser, error) {
	var nameErr error
	if patch.Name.Set && (patch.Name.Value == nil || strings.TrimSpace(*patch.Name.Value) == "") {
		nameErr = apperror.Validation(map[string]string{"name": "is required"})
	}
	fieldErr := validation.Struct(profileUpdate{Name: patch.Name.Value, Bio: patch.Bio.Value, Avatar: patch.Avatar.Value})
	if err := validation.Merge(fieldErr, nameErr); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{userID}
	if patch.Name.Set {
		args = append(args, *patch.Name.Value)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Bio.Set {
		args = append(args, patch.Bio.Value)
		sets = append(sets, fmt.Sprintf("bio = $%d", len(args)))
	}
	if patch.Avatar.Set {
		args = append(args, patch.Avatar.Value)
		sets = append(sets, fmt.Sprintf("avatar = $%d", len(args)))
	}

	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+`
		 WHERE id = $1
		 RETURNING `+userColumns,
		args...,
	).Scan(userScanDest(user)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.cache.InvalidateUserProfile(ctx, userID)
	return user.Public(), nil
}

func userScanDest(u *models.User) []any {
	return []any{&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Bio, &u.Avatar, &u.CreatedAt, &u.UpdatedAt}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
