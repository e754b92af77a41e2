package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

type prerequisiteLinkStub struct {
	byCourse map[string][]models.PrerequisiteLink
	all      []models.PrerequisiteLink
	err      error
}

func (m *prerequisiteLinkStub) ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteLink, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byCourse[courseID], nil
}

func (m *prerequisiteLinkStub) ListAll(ctx context.Context) ([]models.PrerequisiteLink, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.all, nil
}

type prerequisiteCourseStub struct {
	courses map[string]models.Course
}

func (m *prerequisiteCourseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return &course, nil
	}
	return nil, sql.ErrNoRows
}

func link(courseID, prerequisiteID string, groupNo int, required bool) models.PrerequisiteLink {
	return models.PrerequisiteLink{
		CourseID:       courseID,
		PrerequisiteID: prerequisiteID,
		GroupNo:        groupNo,
		Required:       required,
	}
}

func TestPrerequisiteServiceResolve(t *testing.T) {
	links := &prerequisiteLinkStub{byCourse: map[string][]models.PrerequisiteLink{
		"calc-1": {
			link("calc-1", "alg-2", 1, true),
			link("calc-1", "geo-1", 1, false),
			link("calc-1", "trig-1", 2, false),
		},
	}}
	courses := &prerequisiteCourseStub{courses: map[string]models.Course{
		"calc-1": {ID: "calc-1", Code: "MATH401"},
	}}
	svc := NewPrerequisiteService(links, courses, zap.NewNop())

	groups, err := svc.Resolve(context.Background(), "calc-1")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, 1, groups[0].GroupNo)
	require.Len(t, groups[0].Members, 2)
	assert.Equal(t, "alg-2", groups[0].Members[0].PrerequisiteID)
	assert.True(t, groups[0].Members[0].Required)
	assert.Equal(t, "geo-1", groups[0].Members[1].PrerequisiteID)
	assert.False(t, groups[0].Members[1].Required)

	assert.Equal(t, 2, groups[1].GroupNo)
	require.Len(t, groups[1].Members, 1)
	assert.Equal(t, "trig-1", groups[1].Members[0].PrerequisiteID)
}

func TestPrerequisiteServiceResolveNoLinks(t *testing.T) {
	links := &prerequisiteLinkStub{}
	courses := &prerequisiteCourseStub{courses: map[string]models.Course{
		"art-1": {ID: "art-1"},
	}}
	svc := NewPrerequisiteService(links, courses, zap.NewNop())

	groups, err := svc.Resolve(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestPrerequisiteServiceResolveUnknownCourse(t *testing.T) {
	svc := NewPrerequisiteService(&prerequisiteLinkStub{}, &prerequisiteCourseStub{}, zap.NewNop())

	_, err := svc.Resolve(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPrerequisiteServiceValidateAdditionSelfLink(t *testing.T) {
	svc := NewPrerequisiteService(&prerequisiteLinkStub{}, &prerequisiteCourseStub{}, zap.NewNop())

	err := svc.ValidateAddition(context.Background(), "alg-1", "alg-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrerequisiteCycle.Code, appErr.Code)
}

func TestPrerequisiteServiceValidateAdditionDirectCycle(t *testing.T) {
	links := &prerequisiteLinkStub{all: []models.PrerequisiteLink{
		link("calc-1", "alg-2", 1, true),
	}}
	svc := NewPrerequisiteService(links, &prerequisiteCourseStub{}, zap.NewNop())

	err := svc.ValidateAddition(context.Background(), "alg-2", "calc-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrerequisiteCycle.Code, appErr.Code)
}

func TestPrerequisiteServiceValidateAdditionTransitiveCycle(t *testing.T) {
	links := &prerequisiteLinkStub{all: []models.PrerequisiteLink{
		link("calc-1", "alg-2", 1, true),
		link("alg-2", "alg-1", 1, true),
	}}
	svc := NewPrerequisiteService(links, &prerequisiteCourseStub{}, zap.NewNop())

	// alg-1 <- alg-2 <- calc-1; making calc-1 a prerequisite of alg-1 loops.
	err := svc.ValidateAddition(context.Background(), "alg-1", "calc-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrerequisiteCycle.Code, appErr.Code)
}

func TestPrerequisiteServiceValidateAdditionAcyclic(t *testing.T) {
	links := &prerequisiteLinkStub{all: []models.PrerequisiteLink{
		link("calc-1", "alg-2", 1, true),
		link("alg-2", "alg-1", 1, true),
	}}
	svc := NewPrerequisiteService(links, &prerequisiteCourseStub{}, zap.NewNop())

	require.NoError(t, svc.ValidateAddition(context.Background(), "calc-2", "calc-1"))
	require.NoError(t, svc.ValidateAddition(context.Background(), "calc-1", "geo-1"))
}

func TestGroupLinksPreservesOrder(t *testing.T) {
	groups := groupLinks([]models.PrerequisiteLink{
		link("c", "p3", 3, true),
		link("c", "p1a", 1, true),
		link("c", "p1b", 1, false),
	})

	// First appearance wins the position; members stay in input order.
	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups[0].GroupNo)
	assert.Equal(t, 1, groups[1].GroupNo)
	assert.Equal(t, []models.PrerequisiteMember{
		{PrerequisiteID: "p1a", Required: true},
		{PrerequisiteID: "p1b", Required: false},
	}, groups[1].Members)
}
