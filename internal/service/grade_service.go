package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	AverageGradePoints(ctx context.Context, studentID string) (float64, bool, error)
}

type gradeStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateGPA(ctx context.Context, id string, gpa *float64, updatedAt time.Time) error
}

type gradeCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type gradeEnrollmentUpdater interface {
	FindActiveByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

// RecordGradeRequest describes a final grade entry payload.
type RecordGradeRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
	LetterGrade  string `json:"letter_grade" validate:"required"`
	Term         string `json:"term" validate:"required"`
	AcademicYear int    `json:"academic_year" validate:"required,gte=2000"`
}

// GradeService records course outcomes and keeps the student's cumulative
// GPA in step with them.
type GradeService struct {
	repo        gradeRepository
	students    gradeStudentRepository
	courses     gradeCourseReader
	enrollments gradeEnrollmentUpdater
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRepository, students gradeStudentRepository, courses gradeCourseReader, enrollments gradeEnrollmentUpdater, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		repo:        repo,
		students:    students,
		courses:     courses,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
	}
}

// List returns grades with pagination metadata.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return grades, pagination, nil
}

// ListByStudent returns a student's grade history oldest first.
func (s *GradeService) ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	grades, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Record stores a letter grade, closes the matching ACTIVE enrollment when
// one exists, and recalculates the student's cumulative GPA. The points
// conversion is fixed at record time so later scale changes never rewrite
// history.
func (s *GradeService) Record(ctx context.Context, req RecordGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	points, ok := models.GradePointsForLetter(req.LetterGrade)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownLetterGrade, "unrecognized letter grade "+req.LetterGrade)
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	grade := &models.Grade{
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		LetterGrade:  req.LetterGrade,
		GradePoints:  points,
		Term:         req.Term,
		AcademicYear: req.AcademicYear,
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}

	s.completeEnrollment(ctx, req.StudentID, req.CourseID)

	if err := s.recalculateGPA(ctx, req.StudentID); err != nil {
		return nil, err
	}

	s.logger.Info("grade recorded",
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("letter_grade", req.LetterGrade),
		zap.Float64("grade_points", points))
	return grade, nil
}

// completeEnrollment flips the ACTIVE enrollment for the graded course to
// COMPLETED. Grades for courses taken elsewhere have no enrollment row, so
// absence is not an error.
func (s *GradeService) completeEnrollment(ctx context.Context, studentID, courseID string) {
	enrollment, err := s.enrollments.FindActiveByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("failed to look up active enrollment",
				zap.String("student_id", studentID),
				zap.String("course_id", courseID),
				zap.Error(err))
		}
		return
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusCompleted); err != nil {
		s.logger.Warn("failed to complete enrollment",
			zap.String("enrollment_id", enrollment.ID),
			zap.Error(err))
	}
}

func (s *GradeService) recalculateGPA(ctx context.Context, studentID string) error {
	average, ok, err := s.repo.AverageGradePoints(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to average grade points")
	}
	var gpa *float64
	if ok {
		gpa = &average
	}
	if err := s.students.UpdateGPA(ctx, studentID, gpa, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student gpa")
	}
	return nil
}
