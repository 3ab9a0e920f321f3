package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingPasswordFailed = errors.New("hashing password failed")
	ErrInvalidEmailFormat    = errors.New("invalid email format")
	ErrInvalidUsername       = errors.New("username must not be empty")
)

type UserService interface {
	CreateUser(ctx context.Context, email, username, password string) (*User, error)
	ReadUserByEmail(ctx context.Context, email string) (*User, error)
	ReadUserByID(ctx context.Context, id uint) (*User, error)
	UpdateEmail(ctx context.Context, id uint, email string) error
	UpdatePassword(ctx context.Context, id uint, password string) error
	UpdateLastSeen(ctx context.Context, id uint) error
	DeleteUser(ctx context.Context, id uint) error
}

type userService struct {
	repo   UserRepository
	logger *zap.Logger
}

func NewUserService(repo UserRepository, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger,
	}
}

/** CREATE */
func (s *userService) CreateUser(ctx context.Context, email, username, password string) (*User, error) {
	if err := validateEmail(email); err != nil {
		s.logger.Warn("invalid email format", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if strings.TrimSpace(username) == "" {
		return nil, ErrInvalidUsername
	}
	if err := CheckPassword(password); err != nil {
		s.logger.Warn("invalid password format", zap.Error(err))
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, ErrHashingPasswordFailed
	}

	role, err := s.repo.ReadRole(ctx, Student)
	if err != nil {
		s.logger.Error("failed to load default role", zap.Error(err))
		return nil, err
	}

	user := NewUser(email, strings.TrimSpace(username), string(hashed), role)
	if err := s.repo.Create(ctx, user); err != nil {
		s.logger.Error("failed to create user in repository", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmailFormat
	}
	return nil
}

/** READ */
func (s *userService) ReadUserByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.ReadByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *userService) ReadUserByID(ctx context.Context, id uint) (*User, error) {
	user, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get user by ID", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

/** UPDATE */
func (s *userService) UpdateEmail(ctx context.Context, id uint, email string) error {
	if err := validateEmail(email); err != nil {
		s.logger.Warn("invalid email format", zap.Uint("id", id), zap.String("email", email), zap.Error(err))
		return err
	}

	user, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to update email, user not found", zap.Uint("id", id), zap.Error(err))
		return err
	}

	user.Email = email
	if err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update email in repository", zap.Uint("id", id), zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

func (s *userService) UpdatePassword(ctx context.Context, id uint, password string) error {
	if err := CheckPassword(password); err != nil {
		s.logger.Warn("invalid password format", zap.Uint("id", id), zap.Error(err))
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return ErrHashingPasswordFailed
	}

	user, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to update password, user not found", zap.Uint("id", id), zap.Error(err))
		return err
	}

	user.Password = string(hashed)
	if err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update password in repository", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *userService) UpdateLastSeen(ctx context.Context, id uint) error {
	user, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to update last seen, user not found", zap.Uint("id", id), zap.Error(err))
		return err
	}

	user.LastSeen = time.Now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update last seen in repository", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

/** DELETE */
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}
