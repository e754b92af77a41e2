package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-rec-api/internal/models"
)

// PrerequisiteRepository handles persistence of prerequisite links.
type PrerequisiteRepository struct {
	db *sqlx.DB
}

// NewPrerequisiteRepository constructs the repository.
func NewPrerequisiteRepository(db *sqlx.DB) *PrerequisiteRepository {
	return &PrerequisiteRepository{db: db}
}

const prerequisiteColumns = `id, course_id, prerequisite_id, group_no, required, created_at`

// ListByCourse returns the prerequisite links of one course ordered for
// deterministic group resolution.
func (r *PrerequisiteRepository) ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM prerequisite_links WHERE course_id = $1 ORDER BY group_no ASC, prerequisite_id ASC`, prerequisiteColumns)
	var links []models.PrerequisiteLink
	if err := r.db.SelectContext(ctx, &links, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return links, nil
}

// ListAll returns every stored prerequisite link. Used for cycle validation
// when the catalog is mutated.
func (r *PrerequisiteRepository) ListAll(ctx context.Context) ([]models.PrerequisiteLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM prerequisite_links ORDER BY course_id ASC, group_no ASC, prerequisite_id ASC`, prerequisiteColumns)
	var links []models.PrerequisiteLink
	if err := r.db.SelectContext(ctx, &links, query); err != nil {
		return nil, fmt.Errorf("list all prerequisites: %w", err)
	}
	return links, nil
}

// Exists checks whether a link already ties the prerequisite to the course.
func (r *PrerequisiteRepository) Exists(ctx context.Context, courseID, prerequisiteID string) (bool, error) {
	const query = `SELECT 1 FROM prerequisite_links WHERE course_id = $1 AND prerequisite_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, prerequisiteID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check prerequisite link: %w", err)
	}
	return true, nil
}

// Create persists a new prerequisite link.
func (r *PrerequisiteRepository) Create(ctx context.Context, link *models.PrerequisiteLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO prerequisite_links (id, course_id, prerequisite_id, group_no, required, created_at)
        VALUES (:id, :course_id, :prerequisite_id, :group_no, :required, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create prerequisite link: %w", err)
	}
	return nil
}

// Delete removes a prerequisite link by identifier.
func (r *PrerequisiteRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM prerequisite_links WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete prerequisite link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prerequisite link result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
