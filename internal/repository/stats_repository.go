package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-rec-api/internal/models"
)

// StatsRepository exposes read-optimised aggregate queries for the dashboard.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository instantiates the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountActiveStudents returns the number of active students.
func (r *StatsRepository) CountActiveStudents(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM students WHERE active = true`); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return total, nil
}

// CountActiveCourses returns the number of active catalog courses.
func (r *StatsRepository) CountActiveCourses(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses WHERE active = true`); err != nil {
		return 0, fmt.Errorf("count active courses: %w", err)
	}
	return total, nil
}

// CountEnrollments returns the number of enrollment records across all terms.
func (r *StatsRepository) CountEnrollments(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments`); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// StudentsByGradeLevel aggregates active students per grade level.
func (r *StatsRepository) StudentsByGradeLevel(ctx context.Context) ([]models.GradeLevelCount, error) {
	const query = `SELECT grade_level, COUNT(*) AS count FROM students WHERE active = true GROUP BY grade_level ORDER BY grade_level ASC`
	var counts []models.GradeLevelCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("students by grade level: %w", err)
	}
	return counts, nil
}

// CoursesByType aggregates active courses per course type.
func (r *StatsRepository) CoursesByType(ctx context.Context) ([]models.CourseTypeCount, error) {
	const query = `SELECT course_type, COUNT(*) AS count FROM courses WHERE active = true GROUP BY course_type ORDER BY course_type ASC`
	var counts []models.CourseTypeCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("courses by type: %w", err)
	}
	return counts, nil
}

// EnrollmentsByStatus aggregates enrollments per lifecycle status.
func (r *StatsRepository) EnrollmentsByStatus(ctx context.Context) ([]models.EnrollmentStatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM enrollments GROUP BY status ORDER BY status ASC`
	var counts []models.EnrollmentStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("enrollments by status: %w", err)
	}
	return counts, nil
}
