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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "term", "status", "created_at", "updated_at"}).
		AddRow("enr-1", "stu-1", "crs-1", "2025-FALL", "COMPLETED", time.Now(), time.Now()).
		AddRow("enr-2", "stu-1", "crs-2", "2026-SPRING", "ACTIVE", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, term, status, created_at, updated_at FROM enrollments WHERE student_id = $1 ORDER BY created_at ASC")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments[0].Status)
	assert.Equal(t, "2026-SPRING", enrollments[1].Term)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "term", "status", "created_at", "updated_at"}).
		AddRow("enr-3", "stu-2", "crs-1", "2026-SPRING", "ACTIVE", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE term = $1 AND status = $2")).
		WithArgs("2026-SPRING", "ACTIVE").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE term = $1 AND status = $2")).
		WithArgs("2026-SPRING", "ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{Term: "2026-SPRING", Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("stu-1", "crs-2", string(models.EnrollmentStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "crs-2")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("stu-1", "crs-9", string(models.EnrollmentStatusActive)).
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsActive(context.Background(), "stu-1", "crs-9")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "stu-1", "crs-2", "2026-SPRING", string(models.EnrollmentStatusActive), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseID: "crs-2", Term: "2026-SPRING"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.NotEmpty(t, enrollment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("enr-1", string(models.EnrollmentStatusCompleted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusCompleted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
