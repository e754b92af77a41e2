package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

type prerequisiteLinkReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteLink, error)
	ListAll(ctx context.Context) ([]models.PrerequisiteLink, error)
}

type prerequisiteCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// PrerequisiteService resolves the prerequisite structure of catalog courses
// and guards the stored link set against cycles.
type PrerequisiteService struct {
	links   prerequisiteLinkReader
	courses prerequisiteCourseReader
	logger  *zap.Logger
}

// NewPrerequisiteService constructs the service.
func NewPrerequisiteService(links prerequisiteLinkReader, courses prerequisiteCourseReader, logger *zap.Logger) *PrerequisiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerequisiteService{links: links, courses: courses, logger: logger}
}

// Resolve returns the ordered prerequisite groups of a course. A course with
// no links resolves to an empty collection, never an error.
func (s *PrerequisiteService) Resolve(ctx context.Context, courseID string) ([]models.PrerequisiteGroup, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	links, err := s.links.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite links")
	}
	return groupLinks(links), nil
}

// groupLinks folds flat links into groups keyed by group number. The repo
// returns links ordered by (group_no, prerequisite_id), and that order is
// preserved inside and across groups.
func groupLinks(links []models.PrerequisiteLink) []models.PrerequisiteGroup {
	groups := make([]models.PrerequisiteGroup, 0)
	index := make(map[int]int)
	for _, link := range links {
		pos, ok := index[link.GroupNo]
		if !ok {
			pos = len(groups)
			index[link.GroupNo] = pos
			groups = append(groups, models.PrerequisiteGroup{GroupNo: link.GroupNo})
		}
		groups[pos].Members = append(groups[pos].Members, models.PrerequisiteMember{
			PrerequisiteID: link.PrerequisiteID,
			Required:       link.Required,
		})
	}
	return groups
}

// ValidateAddition rejects a proposed link that would make a course reachable
// as its own prerequisite. The engine assumes the stored set stays acyclic,
// so the check runs here, at mutation time.
func (s *PrerequisiteService) ValidateAddition(ctx context.Context, courseID, prerequisiteID string) error {
	if courseID == prerequisiteID {
		return appErrors.Clone(appErrors.ErrPrerequisiteCycle, "a course cannot be its own prerequisite")
	}
	links, err := s.links.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite links")
	}
	adjacency := make(map[string][]string, len(links))
	for _, link := range links {
		adjacency[link.CourseID] = append(adjacency[link.CourseID], link.PrerequisiteID)
	}

	// Adding course -> prerequisite closes a loop exactly when the course is
	// already reachable from the prerequisite.
	visited := make(map[string]bool)
	stack := []string{prerequisiteID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == courseID {
			return appErrors.Clone(appErrors.ErrPrerequisiteCycle, "prerequisite chain would form a cycle")
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		stack = append(stack, adjacency[current]...)
	}
	return nil
}
