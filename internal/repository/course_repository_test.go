package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-rec-api/internal/models"
)

func newCourseMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "name", "subject", "course_type", "min_gpa", "credits", "active", "created_at", "updated_at"})
}

func TestCourseRepositoryListAllActive(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("crs-1", "ALG1", "Algebra I", "MATH", "REGULAR", nil, 1.0, true, time.Now(), time.Now()).
		AddRow("crs-2", "CALC-AP", "AP Calculus", "MATH", "AP", 3.0, 1.0, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, subject, course_type, min_gpa, credits, active, created_at, updated_at FROM courses WHERE active = true ORDER BY code ASC")).
		WillReturnRows(rows)

	courses, err := repo.ListAllActive(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "ALG1", courses[0].Code)
	assert.Nil(t, courses[0].MinGPA)
	require.NotNil(t, courses[1].MinGPA)
	assert.InDelta(t, 3.0, *courses[1].MinGPA, 0.001)
	assert.Equal(t, models.CourseTypeAP, courses[1].CourseType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("crs-3", "BIO-H", "Honors Biology", "SCIENCE", "HONORS", nil, 1.0, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE subject = $1 AND course_type = $2")).
		WithArgs("SCIENCE", string(models.CourseTypeHonors)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE subject = $1 AND course_type = $2")).
		WithArgs("SCIENCE", string(models.CourseTypeHonors)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{Subject: "SCIENCE", CourseType: models.CourseTypeHonors})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, subject, course_type, min_gpa, credits, active, created_at, updated_at FROM courses WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryExistsByCode(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE code = $1 LIMIT 1")).
		WithArgs("ALG1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByCode(context.Background(), "ALG1", "")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE code = $1 AND id <> $2 LIMIT 1")).
		WithArgs("ALG1", "crs-1").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsByCode(context.Background(), "ALG1", "crs-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{Code: "GEOM", Name: "Geometry", Subject: "MATH", CourseType: models.CourseTypeRegular, Credits: 1.0, Active: true}
	err := repo.Create(context.Background(), course)
	require.NoError(t, err)
	assert.NotEmpty(t, course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
