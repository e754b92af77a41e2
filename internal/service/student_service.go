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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// portalAccounts links student records to their login accounts so that
// deactivating a student also closes portal access.
type portalAccounts interface {
	DisablePortalAccess(ctx context.Context, studentID string, at time.Time) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	StudentNumber string   `json:"student_number" validate:"required"`
	FullName      string   `json:"full_name" validate:"required"`
	GradeLevel    string   `json:"grade_level" validate:"required"`
	CurrentGPA    *float64 `json:"current_gpa" validate:"omitempty,gte=0,lte=4"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	StudentNumber string   `json:"student_number" validate:"required"`
	FullName      string   `json:"full_name" validate:"required"`
	GradeLevel    string   `json:"grade_level" validate:"required"`
	CurrentGPA    *float64 `json:"current_gpa" validate:"omitempty,gte=0,lte=4"`
	Active        bool     `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	accounts  portalAccounts
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service. accounts may be nil
// when no login accounts are linked to students.
func NewStudentService(repo studentRepository, accounts portalAccounts, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, accounts: accounts, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
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
	return students, pagination, nil
}

// Get returns one student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByNumber(ctx, req.StudentNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
	}
	student := &models.Student{
		StudentNumber: req.StudentNumber,
		FullName:      req.FullName,
		GradeLevel:    req.GradeLevel,
		CurrentGPA:    req.CurrentGPA,
		Active:        true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByNumber(ctx, req.StudentNumber, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
	}
	student.StudentNumber = req.StudentNumber
	student.FullName = req.FullName
	student.GradeLevel = req.GradeLevel
	student.CurrentGPA = req.CurrentGPA
	student.Active = req.Active
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks a student inactive, keeping the academic history intact.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	// The student row is already inactive at this point, so a failed
	// account cleanup must not fail the request.
	if s.accounts != nil {
		if err := s.accounts.DisablePortalAccess(ctx, id, time.Now().UTC()); err != nil {
			s.logger.Warn("failed to disable portal access",
				zap.String("student_id", id),
				zap.Error(err))
		}
	}
	return nil
}
