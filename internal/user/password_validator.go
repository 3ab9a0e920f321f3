package user

import (
	"fmt"
	"strings"
	"unicode"
)

const PasswordMinimumLength = 8

const specialCharacters = "!@#$%^&*()-_=+[]{}|;:'\",.<>?/`~"

var (
	ErrPasswordTooShort                    = fmt.Errorf("password should be at least %d characters", PasswordMinimumLength)
	ErrPasswordNotAlphanumeric             = fmt.Errorf("password must contain a letter and a digit")
	ErrPasswordDoesNotHaveSpecialCharacter = fmt.Errorf("password does not contain special characters")
)

func CheckPassword(password string) error {
	if len(password) < PasswordMinimumLength {
		return ErrPasswordTooShort
	}
	if !hasLetterAndDigit(password) {
		return ErrPasswordNotAlphanumeric
	}
	if !strings.ContainsAny(password, specialCharacters) {
		return ErrPasswordDoesNotHaveSpecialCharacter
	}
	return nil
}

func hasLetterAndDigit(password string) bool {
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
