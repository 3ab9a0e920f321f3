package user

import (
	"time"

	"gorm.io/gorm"
)

// RoleType is the integer role value embedded in access tokens.
// @Description role type: 0 student, 1 teacher, 2 superuser
type RoleType int

const (
	Student RoleType = iota
	Teacher
	Superuser
)

// AllRoleTypes lists every role seeded at startup.
var AllRoleTypes = []RoleType{Student, Teacher, Superuser}

func (r RoleType) String() string {
	switch r {
	case Student:
		return "STUDENT"
	case Teacher:
		return "TEACHER"
	case Superuser:
		return "SUPERUSER"
	default:
		return "UNKNOWN"
	}
}

// Role is a row of the roles lookup table.
type Role struct {
	ID       uint     `json:"-" gorm:"primaryKey"`
	RoleType RoleType `json:"role_type" gorm:"uniqueIndex;not null"`
}

// User represents an account of the lesson-booking application.
// swagger:model UserResponse
// @Description user model
type User struct {
	gorm.Model
	// Email address (unique)
	Email string `json:"email" gorm:"uniqueIndex;not null"`
	// Display name
	Username string `json:"username" gorm:"not null"`
	// Password hash (hidden from JSON)
	Password string `json:"-"`
	// LastSeen indicates last login time
	LastSeen time.Time `json:"last_seen"`
	RoleID   *uint     `json:"-"`
	Role     *Role     `json:"role,omitempty"`
}

// NewUser initializes a User bound to the given role row.
func NewUser(email, username, passwordHash string, role *Role) *User {
	u := &User{
		Email:    email,
		Username: username,
		Password: passwordHash,
		LastSeen: time.Now().UTC(),
	}
	if role != nil {
		u.RoleID = &role.ID
		u.Role = role
	}
	return u
}

// HasRole reports whether the role association was loaded.
func (u *User) HasRole() bool {
	return u != nil && u.Role != nil
}
