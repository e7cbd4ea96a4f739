package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/kinship/internal/apperror"
	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/validation"
)

var (
	ErrRelationshipNotFound   = apperror.New(apperror.KindNotFound, "Relationship not found")
	ErrRelationshipExists     = apperror.New(apperror.KindConflict, "Relationship already exists")
	ErrCannotRequestSelf      = apperror.New(apperror.KindInvalidOperation, "Cannot send friend request to yourself")
	ErrNotAddressee           = apperror.New(apperror.KindForbidden, "Only the addressee can accept or block the request")
	ErrRelationshipNotPending = apperror.New(apperror.KindInvalidOperation, "Relationship is not pending")
	ErrNotParticipant         = apperror.New(apperror.KindForbidden, "You can only remove your own relationships")
)

const relationshipColumns = `r.id, r.requester_id, r.addressee_id, r.status, r.created_at, r.updated_at,
	rq.id, rq.email, rq.name, rq.bio, rq.avatar,
	ad.id, ad.email, ad.name, ad.bio, ad.avatar`

const relationshipJoins = `JOIN users rq ON rq.id = r.requester_id
	JOIN users ad ON ad.id = r.addressee_id`

type RelationshipService struct {
	db    DB
	cache *Cache
}

func NewRelationshipService(db DB, cache *Cache) *RelationshipService {
	return &RelationshipService{db: db, cache: cache}
}

// SendFriendRequest creates a PENDING relationship from requester to addressee.
// At most one relationship may exist per unordered pair.
func (s *RelationshipService) SendFriendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.Relationship, error) {
	if requesterID == addresseeID {
		return nil, ErrCannotRequestSelf
	}

	rel := &models.Relationship{}
	err := withTx(ctx, s.db, "friend request", func(tx Tx) error {
		if err := lockUsers(ctx, tx, requesterID, addresseeID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return err
			}
			return fmt.Errorf("lock users: %w", err)
		}

		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM relationships
				WHERE (requester_id = $1 AND addressee_id = $2)
				   OR (requester_id = $2 AND addressee_id = $1)
			)`,
			requesterID, addresseeID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check relationship: %w", err)
		}
		if exists {
			return ErrRelationshipExists
		}

		err = tx.QueryRow(ctx,
			`WITH r AS (
				INSERT INTO relationships (requester_id, addressee_id, status)
				VALUES ($1, $2, $3)
				RETURNING id, requester_id, addressee_id, status, created_at, updated_at
			)
			SELECT `+relationshipColumns+`
			FROM r
			`+relationshipJoins,
			requesterID, addresseeID, string(models.RelationshipStatusPending),
		).Scan(relationshipScanDest(rel)...)
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrRelationshipExists
		case pgForeignKeyViolation:
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
		return nil
	})
	if pgErrorCode(err) == pgUniqueViolation {
		return nil, ErrRelationshipExists
	}
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateRelationships(ctx, requesterID, addresseeID)
	return rel, nil
}

// GetUserRelationships lists every relationship userID takes part in, newest first.
func (s *RelationshipService) GetUserRelationships(ctx context.Context, userID uuid.UUID) ([]models.Relationship, error) {
	if cached, ok := s.cache.GetRelationships(ctx, userID); ok {
		return cached, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+`
		 FROM relationships r
		 `+relationshipJoins+`
		 WHERE r.requester_id = $1 OR r.addressee_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	relationships := []models.Relationship{}
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(relationshipScanDest(&rel)...); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		relationships = append(relationships, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}

	s.cache.SetRelationships(ctx, userID, relationships)
	return relationships, nil
}

// UpdateRelationship moves a PENDING relationship to ACCEPTED or BLOCKED.
// Only the addressee may do so.
func (s *RelationshipService) UpdateRelationship(ctx context.Context, relationshipID, actingUserID uuid.UUID, status models.RelationshipStatus) (*models.Relationship, error) {
	if err := validation.Var("status", string(status), "required,oneof=ACCEPTED BLOCKED"); err != nil {
		return nil, err
	}

	current, err := s.loadState(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	if current.AddresseeID != actingUserID {
		return nil, ErrNotAddressee
	}
	if current.Status != models.RelationshipStatusPending {
		return nil, ErrRelationshipNotPending
	}

	// The guard in WHERE makes the transition a single compare-and-set.
	rel := &models.Relationship{}
	err = s.db.QueryRow(ctx,
		`WITH r AS (
			UPDATE relationships
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'PENDING' AND addressee_id = $3
			RETURNING id, requester_id, addressee_id, status, created_at, updated_at
		)
		SELECT `+relationshipColumns+`
		FROM r
		`+relationshipJoins,
		relationshipID, string(status), actingUserID,
	).Scan(relationshipScanDest(rel)...)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent transition or removal got there first.
		if _, err := s.loadState(ctx, relationshipID); err != nil {
			return nil, err
		}
		return nil, ErrRelationshipNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("update relationship: %w", err)
	}

	s.cache.InvalidateRelationships(ctx, rel.RequesterID, rel.AddresseeID)
	return rel, nil
}

// RemoveRelationship deletes a relationship in any status. Either participant may remove it.
func (s *RelationshipService) RemoveRelationship(ctx context.Context, relationshipID, actingUserID uuid.UUID) error {
	current, err := s.loadState(ctx, relationshipID)
	if err != nil {
		return err
	}
	if !current.Involves(actingUserID) {
		return ErrNotParticipant
	}

	result, err := s.db.Exec(ctx,
		`DELETE FROM relationships
		 WHERE id = $1 AND (requester_id = $2 OR addressee_id = $2)`,
		relationshipID, actingUserID,
	)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRelationshipNotFound
	}

	s.cache.InvalidateRelationships(ctx, current.RequesterID, current.AddresseeID)
	return nil
}

func (s *RelationshipService) loadState(ctx context.Context, relationshipID uuid.UUID) (*models.Relationship, error) {
	rel := &models.Relationship{ID: relationshipID}
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT requester_id, addressee_id, status FROM relationships WHERE id = $1`,
		relationshipID,
	).Scan(&rel.RequesterID, &rel.AddresseeID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRelationshipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	rel.Status = models.RelationshipStatus(status)
	return rel, nil
}

func relationshipScanDest(r *models.Relationship) []any {
	return []any{
		&r.ID, &r.RequesterID, &r.AddresseeID, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		&r.Requester.ID, &r.Requester.Email, &r.Requester.Name, &r.Requester.Bio, &r.Requester.Avatar,
		&r.Addressee.ID, &r.Addressee.Email, &r.Addressee.Name, &r.Addressee.Bio, &r.Addressee.Avatar,
	}
}
