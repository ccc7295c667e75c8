package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/B4OS-Dev/classroom-sync/models"
)

type GradeRepository interface {
	UpsertBatch(ctx context.Context, exec SQLExecutor, grades []*models.Grade) error
	ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Grade, error)
}

type postgresGradeRepository struct {
	db *sql.DB
}

func NewPostgresGradeRepository(db *sql.DB) GradeRepository {
	return &postgresGradeRepository{db: db}
}

func (r *postgresGradeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch writes grade rows keyed by (github_username,
// assignment_name). A re-sync overwrites every column in place.
func (r *postgresGradeRepository) UpsertBatch(ctx context.Context, exec SQLExecutor, grades []*models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO grades (github_username, assignment_name, points_awarded, fork_created_at, fork_updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (github_username, assignment_name) DO UPDATE SET
			points_awarded  = EXCLUDED.points_awarded,
			fork_created_at = EXCLUDED.fork_created_at,
			fork_updated_at = EXCLUDED.fork_updated_at`

	for _, grade := range grades {
		_, err := executor.ExecContext(ctx, query,
			grade.GithubUsername, grade.AssignmentName, grade.PointsAwarded,
			grade.ForkCreatedAt, grade.ForkUpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert grade %s/%s: %w", grade.GithubUsername, grade.AssignmentName, err)
		}
	}
	return nil
}

func (r *postgresGradeRepository) ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Grade, error) {
	executor := r.getExecutor(exec)

	query := `
		SELECT github_username, assignment_name, points_awarded, fork_created_at, fork_updated_at
		FROM grades
		ORDER BY github_username, assignment_name`

	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	defer rows.Close()

	var grades []*models.Grade
	for rows.Next() {
		var (
			g       models.Grade
			points  sql.NullInt64
			forkAt  sql.NullTime
			forkUpd sql.NullTime
		)
		if err := rows.Scan(&g.GithubUsername, &g.AssignmentName, &points, &forkAt, &forkUpd); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		g.PointsAwarded = nullIntToPtr(points)
		g.ForkCreatedAt = nullTimeToPtr(forkAt)
		g.ForkUpdatedAt = nullTimeToPtr(forkUpd)
		grades = append(grades, &g)
	}
	return grades, rows.Err()
}
