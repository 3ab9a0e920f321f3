package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "guitar4ever!", nil},
		{"too short", "a1!", ErrPasswordTooShort},
		{"no digit", "pianopiano!", ErrPasswordNotAlphanumeric},
		{"no letter", "12345678!", ErrPasswordNotAlphanumeric},
		{"no special character", "violin2024", ErrPasswordDoesNotHaveSpecialCharacter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, CheckPassword(tc.password), tc.want)
		})
	}
}
