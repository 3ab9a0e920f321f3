package lesson

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxLessonLength bounds a single booking.
const MaxLessonLength = 4 * time.Hour

var (
	ErrInstrumentRequired = errors.New("instrument must not be empty")
	ErrInvalidLessonTime  = errors.New("lesson must end after it starts and last at most four hours")
)

type LessonService interface {
	AllLessons(ctx context.Context) ([]Lesson, error)
	CreateLesson(ctx context.Context, studentID uint, instrument string, start, end time.Time) (*Lesson, error)
	// OneLesson returns the lesson only when studentID booked it.
	OneLesson(ctx context.Context, id, studentID uint) (*Lesson, error)
	LessonsForStudent(ctx context.Context, studentID uint) ([]Lesson, error)
	// DeleteLesson removes the lesson only when studentID booked it and returns what was removed.
	DeleteLesson(ctx context.Context, id, studentID uint) (*Lesson, error)
}

type lessonService struct {
	repo   LessonRepository
	logger *zap.Logger
}

func NewLessonService(repo LessonRepository, logger *zap.Logger) LessonService {
	return &lessonService{repo: repo, logger: logger}
}

func (s *lessonService) AllLessons(ctx context.Context) ([]Lesson, error) {
	return s.repo.ListAll(ctx)
}

func (s *lessonService) CreateLesson(ctx context.Context, studentID uint, instrument string, start, end time.Time) (*Lesson, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return nil, ErrInstrumentRequired
	}
	if !end.After(start) || end.Sub(start) > MaxLessonLength {
		return nil, ErrInvalidLessonTime
	}

	lesson := &Lesson{
		Instrument: instrument,
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		StudentID:  studentID,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		s.logger.Error("failed to book lesson", zap.Uint("studentID", studentID), zap.Error(err))
		return nil, err
	}
	return lesson, nil
}

func (s *lessonService) OneLesson(ctx context.Context, id, studentID uint) (*Lesson, error) {
	lesson, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// someone else's lesson looks the same as a missing one
	if !lesson.OwnedBy(studentID) {
		return nil, ErrLessonNotFound
	}
	return lesson, nil
}

func (s *lessonService) LessonsForStudent(ctx context.Context, studentID uint) ([]Lesson, error) {
	return s.repo.ListByStudentID(ctx, studentID)
}

func (s *lessonService) DeleteLesson(ctx context.Context, id, studentID uint) (*Lesson, error) {
	lesson, err := s.OneLesson(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete lesson", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return lesson, nil
}
