package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/B4OS-Dev/classroom-sync/models"
)

var ErrAssignmentNotFound = errors.New("assignment not found")

type AssignmentRepository interface {
	UpsertBatch(ctx context.Context, exec SQLExecutor, assignments []*models.Assignment) error
	ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Assignment, error)
}

type postgresAssignmentRepository struct {
	db *sql.DB
}

func NewPostgresAssignmentRepository(db *sql.DB) AssignmentRepository {
	return &postgresAssignmentRepository{db: db}
}

func (r *postgresAssignmentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch writes assignments keyed by normalized name. An unresolved
// points_available never erases a value learned on a previous run.
func (r *postgresAssignmentRepository) UpsertBatch(ctx context.Context, exec SQLExecutor, assignments []*models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO assignments (name, display_name, points_available, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			display_name     = COALESCE(NULLIF(EXCLUDED.display_name, ''), assignments.display_name),
			points_available = COALESCE(EXCLUDED.points_available, assignments.points_available),
			updated_at       = EXCLUDED.updated_at`

	for _, assignment := range assignments {
		if assignment.UpdatedAt.IsZero() {
			assignment.UpdatedAt = time.Now()
		}
		_, err := executor.ExecContext(ctx, query,
			assignment.Name, assignment.DisplayName, assignment.PointsAvailable, assignment.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert assignment %s: %w", assignment.Name, err)
		}
	}
	return nil
}

func (r *postgresAssignmentRepository) ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Assignment, error) {
	executor := r.getExecutor(exec)

	query := `
		SELECT id, name, display_name, points_available, updated_at
		FROM assignments
		ORDER BY name`

	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.Assignment
	for rows.Next() {
		var (
			a       models.Assignment
			display sql.NullString
			points  sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Name, &display, &points, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.DisplayName = display.String
		a.PointsAvailable = nullIntToPtr(points)
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}
