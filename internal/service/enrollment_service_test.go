package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	active      map[string]bool
	statusCalls []models.EnrollmentStatus
}

func activeKey(studentID, courseID string) string { return studentID + "|" + courseID }

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	items := make([]models.Enrollment, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		items = append(items, e)
	}
	return items, len(items), nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	items := make([]models.Enrollment, 0)
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			items = append(items, e)
		}
	}
	return items, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.active[activeKey(studentID, courseID)], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "generated"
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	m.statusCalls = append(m.statusCalls, status)
	if e, ok := m.enrollments[id]; ok {
		e.Status = status
		m.enrollments[id] = e
	}
	return nil
}

func activeStudentReader() *recommendationStudentStub {
	return &recommendationStudentStub{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentNumber: "S-1001", FullName: "Amira Tan", GradeLevel: "10", Active: true},
		"stu-2": {ID: "stu-2", StudentNumber: "S-1002", FullName: "Ben Osei", GradeLevel: "11", Active: false},
	}}
}

func activeCourseReader() *prerequisiteCourseStub {
	return &prerequisiteCourseStub{courses: map[string]models.Course{
		"crs-1": {ID: "crs-1", Code: "MATH401", Active: true},
		"crs-2": {ID: "crs-2", Code: "HIST101", Active: false},
	}}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{active: make(map[string]bool)}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID: "stu-1",
		CourseID:  "crs-1",
		Term:      "2026-SPRING",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, "2026-SPRING", enrollment.Term)
}

func TestEnrollmentServiceEnrollDuplicateActive(t *testing.T) {
	repo := &mockEnrollmentRepo{active: map[string]bool{activeKey("stu-1", "crs-1"): true}}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", CourseID: "crs-1", Term: "2026-SPRING"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollInactiveStudent(t *testing.T) {
	repo := &mockEnrollmentRepo{active: make(map[string]bool)}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-2", CourseID: "crs-1", Term: "2026-SPRING"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollInactiveCourse(t *testing.T) {
	repo := &mockEnrollmentRepo{active: make(map[string]bool)}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", CourseID: "crs-2", Term: "2026-SPRING"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollUnknownStudent(t *testing.T) {
	repo := &mockEnrollmentRepo{active: make(map[string]bool)}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "ghost", CourseID: "crs-1", Term: "2026-SPRING"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceUpdateStatus(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", Status: models.EnrollmentStatusActive},
	}}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "enr-1", UpdateEnrollmentStatusRequest{Status: "DROPPED"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, updated.Status)
	assert.Equal(t, []models.EnrollmentStatus{models.EnrollmentStatusDropped}, repo.statusCalls)
}

func TestEnrollmentServiceUpdateStatusFromTerminal(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", Status: models.EnrollmentStatusCompleted},
	}}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "enr-1", UpdateEnrollmentStatusRequest{Status: "DROPPED"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, repo.statusCalls)
}

func TestEnrollmentServiceUpdateStatusRejectsActive(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", Status: models.EnrollmentStatusActive},
	}}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "enr-1", UpdateEnrollmentStatusRequest{Status: "ACTIVE"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollmentServiceListByStudentUnknown(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, activeStudentReader(), activeCourseReader(), validator.New(), zap.NewNop())

	_, err := svc.ListByStudent(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
