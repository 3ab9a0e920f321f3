package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

var (
	ErrEmailAlreadyExists   = errors.New("email already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrUserNotCreated       = errors.New("user not created")
	ErrUserNotUpdated       = errors.New("user not updated")
	ErrUserNotDeleted       = errors.New("user not deleted")
	ErrUnresponsiveDatabase = errors.New("error occurred during writing to users table")
)

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	ReadByEmail(ctx context.Context, email string) (*User, error)
	ReadByID(ctx context.Context, id uint) (*User, error)
	ReadRole(ctx context.Context, roleType RoleType) (*Role, error)
	EnsureRoles(ctx context.Context) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// ReadByID loads the user together with its role.
func (r *userRepository) ReadByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).
		Preload("Role").
		First(&user, id).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return &user, nil
}

func (r *userRepository) ReadByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).
		Preload("Role").
		Where("email = ?", email).
		First(&user).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return &user, nil
}

func (r *userRepository) ReadRole(ctx context.Context, roleType RoleType) (*Role, error) {
	var role Role
	err := r.db.WithContext(ctx).
		Where("role_type = ?", roleType).
		First(&role).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return &role, nil
}

// EnsureRoles inserts any missing role rows. Safe to run on every boot.
func (r *userRepository) EnsureRoles(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rt := range AllRoleTypes {
			role := Role{RoleType: rt}
			// string condition: a struct condition would drop the zero-valued Student
			if err := tx.Where("role_type = ?", rt).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role %s: %w", rt, err)
			}
		}
		return nil
	})
}

func (r *userRepository) Create(ctx context.Context, user *User) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error
	if err != nil {
		if isEmailConflict(err) {
			return ErrEmailAlreadyExists
		}
		return ErrUserNotCreated
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *User) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
	if err != nil {
		if isEmailConflict(err) {
			return ErrEmailAlreadyExists
		}
		return ErrUserNotUpdated
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return ErrUserNotDeleted
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isEmailConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
		strings.Contains(pgErr.ConstraintName, "email")
}
