package lesson

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLessonNotFound       = errors.New("lesson not found")
	ErrUnresponsiveDatabase = errors.New("error occurred during access to lessons table")
)

type LessonRepository interface {
	Create(ctx context.Context, lesson *Lesson) error
	ReadByID(ctx context.Context, id uint) (*Lesson, error)
	ListAll(ctx context.Context) ([]Lesson, error)
	ListByStudentID(ctx context.Context, studentID uint) ([]Lesson, error)
	Delete(ctx context.Context, id uint) error
}

type lessonRepository struct {
	db *gorm.DB
}

func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepository{db: db}
}

func (r *lessonRepository) Create(ctx context.Context, lesson *Lesson) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(lesson).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return nil
}

func (r *lessonRepository) ReadByID(ctx context.Context, id uint) (*Lesson, error) {
	var lesson Lesson
	err := r.db.WithContext(ctx).First(&lesson, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return &lesson, nil
}

func (r *lessonRepository) ListAll(ctx context.Context) ([]Lesson, error) {
	var lessons []Lesson
	if err := r.db.WithContext(ctx).Order("start_time").Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return lessons, nil
}

func (r *lessonRepository) ListByStudentID(ctx context.Context, studentID uint) ([]Lesson, error) {
	var lessons []Lesson
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("start_time").
		Find(&lessons).
		Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return lessons, nil
}

func (r *lessonRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Lesson{}, id)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLessonNotFound
	}
	return nil
}
