package authentication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamfive/lesson-booking-api/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRecordNotFoundByGivenToken = errors.New("record not found by given token")
	ErrRecordInactive             = errors.New("refresh token no longer active")
	ErrOwnerNotFound              = errors.New("token owner not found")
	ErrUnresponsiveDatabase       = errors.New("error occurred during writing to refresh_tokens table")
)

type RecordRepository interface {
	ReadByTokenHash(ctx context.Context, hash string) (*RefreshToken, error)
	ListByUserID(ctx context.Context, userID uint) ([]RefreshToken, error)
	DeactivateByUserID(ctx context.Context, userID uint) error
	// Rotate deactivates every active token of record.UserID and inserts record as the
	// only active one. When supersededHash is set, the rotation only happens while that
	// token is still active.
	Rotate(ctx context.Context, record *RefreshToken, supersededHash string) error
}

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// ReadByTokenHash loads the record with its owner. A soft-deleted owner leaves User nil.
func (r *recordRepository) ReadByTokenHash(ctx context.Context, hash string) (*RefreshToken, error) {
	var record RefreshToken
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("User.Role").
		Where("token_hash = ?", hash).
		First(&record).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFoundByGivenToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return &record, nil
}

func (r *recordRepository) ListByUserID(ctx context.Context, userID uint) ([]RefreshToken, error) {
	var records []RefreshToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&records).
		Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return records, nil
}

// DeactivateByUserID takes the same owner row lock as Rotate, so a rotation that already
// checked its superseded token cannot commit a new active token after this returns.
func (r *recordRepository) DeactivateByUserID(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Unscoped: a soft-deleted owner still gets its tokens revoked.
		var owner user.User
		err := tx.Unscoped().
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&owner, userID).
			Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
		}
		return deactivateAll(tx, userID)
	})
}

func (r *recordRepository) Rotate(ctx context.Context, record *RefreshToken, supersededHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The owner row lock serializes concurrent rotations of one user.
		var owner user.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&owner, record.UserID).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOwnerNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
		}

		if supersededHash != "" {
			var prior RefreshToken
			err := tx.
				Where("token_hash = ? AND user_id = ?", supersededHash, record.UserID).
				First(&prior).
				Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFoundByGivenToken
			}
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
			}
			if !prior.Active {
				return ErrRecordInactive
			}
		}

		if err := deactivateAll(tx, record.UserID); err != nil {
			return err
		}

		record.Active = true
		if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
		}
		return nil
	})
}

func deactivateAll(db *gorm.DB, userID uint) error {
	err := db.Model(&RefreshToken{}).
		Where("user_id = ? AND active = ?", userID, true).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now().UTC(),
		}).
		Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return nil
}
