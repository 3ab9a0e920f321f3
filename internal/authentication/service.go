package authentication

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teamfive/lesson-booking-api/internal/user"
	"github.com/teamfive/lesson-booking-api/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// refreshTokenBytes is the entropy of a refresh token value (256 bits).
const refreshTokenBytes = 32

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrLoginFailed         = errors.New("login failed")
	ErrUnknownUser         = errors.New("unknown user")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenStore          = errors.New("refresh token store failure")
	ErrTokenSigning        = errors.New("access token signing failed")
	ErrTokenGeneration     = errors.New("refresh token generation failed")

	ErrAuthorizationMissing   = errors.New("authorization header missing")
	ErrAuthorizationMalformed = errors.New("authorization header malformed")
	ErrCredentialsMissing     = errors.New("authorization credentials missing")
	ErrIdentityClaimInvalid   = errors.New("identity claim missing or not an integer")
)

type AuthenticationService interface {
	Login(ctx context.Context, email, password string) (*TokensDto, error)
	Logout(ctx context.Context, refreshToken string) error

	GenerateAccessToken(u *user.User) (string, error)
	CreateTokensDto(ctx context.Context, userID uint) (*TokensDto, error)
	DeactivateTokensForUser(ctx context.Context, userID uint) error
	DoRefresh(ctx context.Context, refreshToken string) (*TokensDto, error)

	// IDClaimFromHeader reads the caller id from an Authorization header value
	// without verifying the token signature.
	IDClaimFromHeader(header string) (uint, error)
	// GetIDClaimFromHeader is IDClaimFromHeader collapsed to -1 on any failure.
	GetIDClaimFromHeader(header string) int
}

type authenticationService struct {
	userService     user.UserService
	recordRepo      RecordRepository
	signer          *utils.TokenSigner
	logger          *zap.Logger
	refreshTokenTTL time.Duration
	now             func() time.Time
}

func NewAuthenticationService(
	userService user.UserService,
	recordRepo RecordRepository,
	signer *utils.TokenSigner,
	logger *zap.Logger,
	refreshTTL time.Duration,
) AuthenticationService {
	return &authenticationService{
		userService:     userService,
		recordRepo:      recordRepo,
		signer:          signer,
		logger:          logger,
		refreshTokenTTL: refreshTTL,
		now:             time.Now,
	}
}

func (a *authenticationService) Login(ctx context.Context, email, password string) (*TokensDto, error) {
	u, err := a.userService.ReadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, ErrLoginFailed
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := a.CreateTokensDto(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := a.userService.UpdateLastSeen(ctx, u.ID); err != nil {
		a.logger.Warn("could not bump last seen", zap.Uint("userID", u.ID), zap.Error(err))
	}
	return tokens, nil
}

func (a *authenticationService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrInvalidRefreshToken
	}
	rec, err := a.recordRepo.ReadByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrRecordNotFoundByGivenToken) {
			return ErrInvalidRefreshToken
		}
		a.logger.Error("failed to read refresh token", zap.Error(err))
		return ErrTokenStore
	}
	if !rec.Active {
		return ErrInvalidRefreshToken
	}
	return a.DeactivateTokensForUser(ctx, rec.UserID)
}

func (a *authenticationService) GenerateAccessToken(u *user.User) (string, error) {
	if !u.HasRole() {
		return "", ErrUnknownUser
	}
	token, err := a.signer.IssueAccessToken(strconv.FormatUint(uint64(u.ID), 10), int(u.Role.RoleType))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenSigning, err)
	}
	return token, nil
}

func (a *authenticationService) CreateTokensDto(ctx context.Context, userID uint) (*TokensDto, error) {
	return a.issueTokens(ctx, userID, "")
}

func (a *authenticationService) DeactivateTokensForUser(ctx context.Context, userID uint) error {
	if err := a.recordRepo.DeactivateByUserID(ctx, userID); err != nil {
		a.logger.Error("error deactivating tokens for user", zap.Uint("userID", userID), zap.Error(err))
		return ErrTokenStore
	}
	return nil
}

// DoRefresh rotates the presented token. Unknown, expired, superseded or orphaned tokens all
// yield ErrInvalidRefreshToken. A superseded token is treated as reuse and revokes the owner's
// remaining tokens.
func (a *authenticationService) DoRefresh(ctx context.Context, refreshToken string) (*TokensDto, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	hash := hashToken(refreshToken)

	rec, err := a.recordRepo.ReadByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrRecordNotFoundByGivenToken) {
			return nil, ErrInvalidRefreshToken
		}
		a.logger.Error("failed to read refresh token", zap.Error(err))
		return nil, ErrTokenStore
	}
	if rec.User == nil {
		return nil, ErrInvalidRefreshToken
	}
	if !rec.Active {
		a.logger.Warn("superseded refresh token presented, revoking user tokens", zap.Uint("userID", rec.UserID))
		_ = a.DeactivateTokensForUser(ctx, rec.UserID)
		return nil, ErrInvalidRefreshToken
	}
	if rec.Expired(a.now()) {
		return nil, ErrInvalidRefreshToken
	}

	return a.issueTokens(ctx, rec.UserID, hash)
}

func (a *authenticationService) issueTokens(ctx context.Context, userID uint, supersededHash string) (*TokensDto, error) {
	value, err := generateRefreshToken()
	if err != nil {
		a.logger.Error("failed to generate refresh token", zap.Error(err))
		return nil, ErrTokenGeneration
	}

	u, err := a.userService.ReadUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, ErrTokenStore
	}

	access, err := a.GenerateAccessToken(u)
	if err != nil {
		if !errors.Is(err, ErrUnknownUser) {
			a.logger.Error("failed to sign access token", zap.Uint("userID", userID), zap.Error(err))
		}
		return nil, err
	}

	record := &RefreshToken{
		UserID:    u.ID,
		TokenHash: hashToken(value),
		ExpiresAt: a.now().Add(a.refreshTokenTTL).UTC(),
	}
	err = a.recordRepo.Rotate(ctx, record, supersededHash)
	switch {
	case err == nil:
		return &TokensDto{RefreshToken: value, AccessToken: access}, nil
	case errors.Is(err, ErrOwnerNotFound):
		return nil, ErrUnknownUser
	case errors.Is(err, ErrRecordNotFoundByGivenToken), errors.Is(err, ErrRecordInactive):
		return nil, ErrInvalidRefreshToken
	default:
		a.logger.Error("failed to rotate refresh token", zap.Uint("userID", userID), zap.Error(err))
		return nil, ErrTokenStore
	}
}

func (a *authenticationService) IDClaimFromHeader(header string) (uint, error) {
	if strings.TrimSpace(header) == "" {
		return 0, ErrAuthorizationMissing
	}
	parts := strings.Fields(header)
	if len(parts) > 2 {
		return 0, ErrAuthorizationMalformed
	}
	if len(parts) < 2 {
		return 0, ErrCredentialsMissing
	}

	sub, err := utils.UnverifiedSubject(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIdentityClaimInvalid, err)
	}
	id, err := strconv.Atoi(sub)
	if err != nil || id < 0 {
		return 0, ErrIdentityClaimInvalid
	}
	return uint(id), nil
}

func (a *authenticationService) GetIDClaimFromHeader(header string) int {
	id, err := a.IDClaimFromHeader(header)
	if err != nil {
		a.logger.Debug("could not read id claim from authorization header", zap.Error(err))
		return -1
	}
	return int(id)
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
