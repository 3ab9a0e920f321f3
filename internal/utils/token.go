package utils

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// AccessTokenTTL is fixed; refresh tokens carry their own configurable expiry.
const AccessTokenTTL = time.Hour

// ContextClaimsKey is the key under which verified AccessClaims are stored in Gin context.
const ContextClaimsKey = "claims"

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrSubjectClaimAbsent = errors.New("subject claim absent")
)

// AccessClaims is the payload of every access token. Roles holds the integer role value as a string.
type AccessClaims struct {
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies HS256 access tokens. It is immutable after construction.
type TokenSigner struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenSigner fails when the configured secret is shorter than 256 bits.
func NewTokenSigner(cfg *JwtConfig) (*TokenSigner, error) {
	if cfg == nil {
		return nil, ErrJwtSecretInvalid
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenSigner{
		key:      []byte(cfg.SecretKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}, nil
}

func (s *TokenSigner) IssueAccessToken(subject string, role int) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Roles: strconv.Itoa(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// ParseAccessToken verifies signature, time claims, issuer and audience.
func (s *TokenSigner) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return nil, ErrInvalidAccessToken
	}
	if s.audience != "" && !claims.VerifyAudience(s.audience, true) {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// UnverifiedSubject decodes the token payload without checking the signature and
// returns its "sub" claim as text. A numeric sub is returned in its literal form.
// Only call it behind a gate that already ran ParseAccessToken.
func UnverifiedSubject(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(tokenString, claims); err != nil {
		return "", err
	}
	var sub string
	switch v := claims["sub"].(type) {
	case string:
		sub = v
	case json.Number:
		sub = v.String()
	}
	if sub == "" {
		return "", ErrSubjectClaimAbsent
	}
	return sub, nil
}
