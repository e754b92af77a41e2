package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

type recommendationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type recommendationCatalogReader interface {
	ListAllActive(ctx context.Context) ([]models.Course, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type recommendationResolver interface {
	Resolve(ctx context.Context, courseID string) ([]models.PrerequisiteGroup, error)
}

type recommendationEnrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type recommendationGradeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error)
}

// RecommendationService walks the catalog and scores every candidate course
// for a student. The run is read-only: results are computed fresh per call
// and never persisted, so concurrent runs need no coordination.
type RecommendationService struct {
	students      recommendationStudentReader
	courses       recommendationCatalogReader
	prerequisites recommendationResolver
	enrollments   recommendationEnrollmentReader
	grades        recommendationGradeReader
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewRecommendationService wires the engine's collaborators.
func NewRecommendationService(
	students recommendationStudentReader,
	courses recommendationCatalogReader,
	prerequisites recommendationResolver,
	enrollments recommendationEnrollmentReader,
	grades recommendationGradeReader,
	metrics *MetricsService,
	logger *zap.Logger,
) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{
		students:      students,
		courses:       courses,
		prerequisites: prerequisites,
		enrollments:   enrollments,
		grades:        grades,
		metrics:       metrics,
		logger:        logger,
	}
}

// Generate produces the full candidate list for a student and target term.
// Every catalog course outside the student's exclusion set comes back with
// both eligibility flags, a confidence score and a reason; inclusion policy
// belongs to the caller. An empty result is not an error.
func (s *RecommendationService) Generate(ctx context.Context, studentID, term string) ([]models.Recommendation, error) {
	start := time.Now()

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	completed := make(map[string]bool)
	excluded := make(map[string]bool)
	for _, enrollment := range enrollments {
		switch enrollment.Status {
		case models.EnrollmentStatusCompleted:
			completed[enrollment.CourseID] = true
			excluded[enrollment.CourseID] = true
		case models.EnrollmentStatusActive:
			excluded[enrollment.CourseID] = true
		}
	}

	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	// Grades arrive oldest first, so the latest recorded grade per course wins.
	gradePoints := make(map[string]float64, len(grades))
	for _, grade := range grades {
		gradePoints[grade.CourseID] = grade.GradePoints
	}

	catalog, err := s.courses.ListAllActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	ids, err := s.courses.ListIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course ids")
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	recommendations := make([]models.Recommendation, 0, len(catalog))
	for _, course := range catalog {
		if excluded[course.ID] {
			continue
		}
		groups, err := s.prerequisites.Resolve(ctx, course.ID)
		if err != nil {
			// One bad candidate must not blank the whole run.
			s.logger.Warn("skipping candidate course",
				zap.String("course_id", course.ID),
				zap.Error(err))
			continue
		}
		groups = s.sanitizeGroups(course.ID, groups, known)

		prereqsMet := prerequisitesSatisfied(groups, completed)
		gpaMet := gpaRequirementSatisfied(course.MinGPA, student.CurrentGPA)
		score, graded := confidenceScore(course.CourseType, groups, gradePoints)

		recommendations = append(recommendations, models.Recommendation{
			CourseID:          course.ID,
			CourseCode:        course.Code,
			CourseName:        course.Name,
			Subject:           course.Subject,
			CourseType:        course.CourseType,
			PrerequisitesMet:  prereqsMet,
			GPARequirementMet: gpaMet,
			Confidence:        score,
			Reason:            composeReason(course, groups, prereqsMet, gpaMet, graded),
			TargetTerm:        term,
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Confidence != recommendations[j].Confidence {
			return recommendations[i].Confidence > recommendations[j].Confidence
		}
		return recommendations[i].CourseID < recommendations[j].CourseID
	})

	s.metrics.ObserveRecommendationRun(len(recommendations), time.Since(start))
	s.logger.Info("generated recommendations",
		zap.String("student_id", studentID),
		zap.String("term", term),
		zap.Int("candidates", len(recommendations)))
	return recommendations, nil
}

// sanitizeGroups drops members whose prerequisite ID is unknown to the
// catalog. Each skip is a data inconsistency: logged and counted, never
// fatal. Groups emptied by the skip vanish, holding nothing over the student.
func (s *RecommendationService) sanitizeGroups(courseID string, groups []models.PrerequisiteGroup, known map[string]bool) []models.PrerequisiteGroup {
	result := make([]models.PrerequisiteGroup, 0, len(groups))
	for _, group := range groups {
		members := make([]models.PrerequisiteMember, 0, len(group.Members))
		for _, member := range group.Members {
			if !known[member.PrerequisiteID] {
				s.metrics.RecordPrerequisiteInconsistency()
				s.logger.Warn("prerequisite link references unknown course",
					zap.String("course_id", courseID),
					zap.String("prerequisite_id", member.PrerequisiteID),
					zap.Int("group_no", group.GroupNo))
				continue
			}
			members = append(members, member)
		}
		if len(members) == 0 {
			continue
		}
		result = append(result, models.PrerequisiteGroup{GroupNo: group.GroupNo, Members: members})
	}
	return result
}

// composeReason names the deciding factors behind the flags and the score.
func composeReason(course models.Course, groups []models.PrerequisiteGroup, prereqsMet, gpaMet bool, graded int) string {
	parts := make([]string, 0, 3)

	switch {
	case len(groups) == 0:
		parts = append(parts, "no prerequisites")
	case prereqsMet:
		parts = append(parts, "prerequisites met")
	default:
		parts = append(parts, "required prerequisites not completed")
	}

	switch {
	case course.MinGPA == nil:
		parts = append(parts, "no GPA requirement")
	case gpaMet:
		parts = append(parts, fmt.Sprintf("meets minimum GPA %.2f", *course.MinGPA))
	default:
		parts = append(parts, fmt.Sprintf("below minimum GPA %.2f", *course.MinGPA))
	}

	switch graded {
	case 0:
		parts = append(parts, "no prerequisite grade history")
	case 1:
		parts = append(parts, "based on 1 prerequisite grade")
	default:
		parts = append(parts, fmt.Sprintf("based on %d prerequisite grades", graded))
	}

	return strings.Join(parts, "; ")
}
