package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

const (
	catalogCacheKey     = "courses:catalog"
	courseCachePattern  = "courses:*"
	courseCacheKeyScope = "courses:id:%s"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListAllActive(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Deactivate(ctx context.Context, id string) error
}

type prerequisiteLinkRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteLink, error)
	Exists(ctx context.Context, courseID, prerequisiteID string) (bool, error)
	Create(ctx context.Context, link *models.PrerequisiteLink) error
	Delete(ctx context.Context, id string) error
}

type prerequisiteValidator interface {
	ValidateAddition(ctx context.Context, courseID, prerequisiteID string) error
	Resolve(ctx context.Context, courseID string) ([]models.PrerequisiteGroup, error)
}

// CreateCourseRequest holds payload for creating catalog courses.
type CreateCourseRequest struct {
	Code       string   `json:"code" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Subject    string   `json:"subject" validate:"required"`
	CourseType string   `json:"course_type" validate:"required"`
	MinGPA     *float64 `json:"min_gpa" validate:"omitempty,gte=0,lte=4"`
	Credits    float64  `json:"credits" validate:"gte=0"`
}

// UpdateCourseRequest holds payload for updating catalog courses.
type UpdateCourseRequest struct {
	Code       string   `json:"code" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Subject    string   `json:"subject" validate:"required"`
	CourseType string   `json:"course_type" validate:"required"`
	MinGPA     *float64 `json:"min_gpa" validate:"omitempty,gte=0,lte=4"`
	Credits    float64  `json:"credits" validate:"gte=0"`
	Active     bool     `json:"active"`
}

// AddPrerequisiteRequest links a prerequisite course into a group.
type AddPrerequisiteRequest struct {
	PrerequisiteID string `json:"prerequisite_id" validate:"required"`
	GroupNo        int    `json:"group_no" validate:"omitempty,gte=1"`
	Required       bool   `json:"required"`
}

// CourseService handles catalog use-cases, including the prerequisite graph.
// Every write invalidates cached catalog reads.
type CourseService struct {
	repo          courseRepository
	links         prerequisiteLinkRepository
	prerequisites prerequisiteValidator
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, links prerequisiteLinkRepository, prerequisites prerequisiteValidator, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:          repo,
		links:         links,
		prerequisites: prerequisites,
		cache:         cache,
		validator:     validate,
		logger:        logger,
	}
}

// List returns catalog courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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
	return courses, pagination, nil
}

// Catalog returns every active course, serving from cache when possible.
func (s *CourseService) Catalog(ctx context.Context) ([]models.Course, error) {
	var cached []models.Course
	if hit, err := s.cache.Get(ctx, catalogCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	courses, err := s.repo.ListAllActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	if err := s.cache.Set(ctx, catalogCacheKey, courses, 0); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err))
	}
	return courses, nil
}

// Get returns one course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	var cached models.Course
	key := fmt.Sprintf(courseCacheKeyScope, id)
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.cache.Set(ctx, key, course, 0); err != nil {
		s.logger.Warn("course cache write failed", zap.String("course_id", id), zap.Error(err))
	}
	return course, nil
}

// Create registers a new catalog course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	courseType := models.CourseType(req.CourseType)
	if !courseType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course type")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already used")
	}
	course := &models.Course{
		Code:       req.Code,
		Name:       req.Name,
		Subject:    req.Subject,
		CourseType: courseType,
		MinGPA:     req.MinGPA,
		Credits:    req.Credits,
		Active:     true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Update modifies an existing catalog course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	courseType := models.CourseType(req.CourseType)
	if !courseType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course type")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already used")
	}
	course.Code = req.Code
	course.Name = req.Name
	course.Subject = req.Subject
	course.CourseType = courseType
	course.MinGPA = req.MinGPA
	course.Credits = req.Credits
	course.Active = req.Active
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Deactivate retires a course from the catalog. History referencing it stays.
func (s *CourseService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// ListPrerequisites returns the resolved prerequisite groups of a course.
func (s *CourseService) ListPrerequisites(ctx context.Context, courseID string) ([]models.PrerequisiteGroup, error) {
	return s.prerequisites.Resolve(ctx, courseID)
}

// AddPrerequisite links a prerequisite course into a group after cycle
// validation. Both endpoints must exist; duplicate links are rejected.
func (s *CourseService) AddPrerequisite(ctx context.Context, courseID string, req AddPrerequisiteRequest) (*models.PrerequisiteLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prerequisite payload")
	}
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if _, err := s.repo.FindByID(ctx, req.PrerequisiteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite course")
	}
	exists, err := s.links.Exists(ctx, courseID, req.PrerequisiteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate prerequisite link")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "prerequisite link already exists")
	}
	if err := s.prerequisites.ValidateAddition(ctx, courseID, req.PrerequisiteID); err != nil {
		return nil, err
	}
	groupNo := req.GroupNo
	if groupNo < 1 {
		groupNo = 1
	}
	link := &models.PrerequisiteLink{
		CourseID:       courseID,
		PrerequisiteID: req.PrerequisiteID,
		GroupNo:        groupNo,
		Required:       req.Required,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create prerequisite link")
	}
	s.invalidateCatalog(ctx)
	s.logger.Info("prerequisite linked",
		zap.String("course_id", courseID),
		zap.String("prerequisite_id", req.PrerequisiteID),
		zap.Int("group_no", groupNo))
	return link, nil
}

// RemovePrerequisite deletes one prerequisite link by ID.
func (s *CourseService) RemovePrerequisite(ctx context.Context, courseID, linkID string) error {
	links, err := s.links.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite links")
	}
	owned := false
	for _, link := range links {
		if link.ID == linkID {
			owned = true
			break
		}
	}
	if !owned {
		return appErrors.Clone(appErrors.ErrNotFound, "prerequisite link not found")
	}
	if err := s.links.Delete(ctx, linkID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "prerequisite link not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete prerequisite link")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, courseCachePattern); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
