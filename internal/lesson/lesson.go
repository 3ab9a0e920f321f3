package lesson

import (
	"time"

	"gorm.io/gorm"

	"github.com/teamfive/lesson-booking-api/internal/user"
)

// Lesson is a booked instrument lesson owned by the student who booked it.
// @Description booked lesson
type Lesson struct {
	gorm.Model
	Instrument string     `json:"instrument" gorm:"not null"`
	StartTime  time.Time  `json:"startTime" gorm:"not null"`
	EndTime    time.Time  `json:"endTime" gorm:"not null"`
	StudentID  uint       `json:"studentId" gorm:"index;not null"`
	Student    *user.User `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// OwnedBy reports whether userID booked the lesson.
func (l *Lesson) OwnedBy(userID uint) bool {
	return l.StudentID == userID
}
