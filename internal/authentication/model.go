package authentication

import (
	"time"

	"github.com/teamfive/lesson-booking-api/internal/user"
)

// RefreshToken is a persisted refresh token. Only the SHA-256 of the issued value is stored.
// Rows are deactivated when superseded and never deleted.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"index;not null"`
	User      *user.User `gorm:"constraint:OnDelete:CASCADE"`
	TokenHash string     `gorm:"uniqueIndex;not null"`
	Active    bool       `gorm:"index;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokensDto is the pair returned to a client after login or refresh.
type TokensDto struct {
	RefreshToken string `json:"refreshToken"`
	AccessToken  string `json:"accessToken"`
}
