package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/B4OS-Dev/classroom-sync/models"
)

type StudentRepository interface {
	UpsertBatch(ctx context.Context, exec SQLExecutor, students []*models.Student) error
	ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Student, error)
}

type postgresStudentRepository struct {
	db *sql.DB // Main DB connection, used when exec is nil
}

func NewPostgresStudentRepository(db *sql.DB) StudentRepository {
	return &postgresStudentRepository{db: db}
}

func (r *postgresStudentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch writes student aggregates keyed by github_username. Null fork
// fields never clobber values from earlier runs: the ranker reads the
// cumulative snapshot, so a student who lost repo access keeps their
// history.
func (r *postgresStudentRepository) UpsertBatch(ctx context.Context, exec SQLExecutor, students []*models.Student) error {
	if len(students) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO students (github_username, fork_created_at, last_updated_at, resolution_time_hours, has_fork, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (github_username) DO UPDATE SET
			fork_created_at       = COALESCE(EXCLUDED.fork_created_at, students.fork_created_at),
			last_updated_at       = COALESCE(EXCLUDED.last_updated_at, students.last_updated_at),
			resolution_time_hours = COALESCE(EXCLUDED.resolution_time_hours, students.resolution_time_hours),
			has_fork              = students.has_fork OR EXCLUDED.has_fork,
			updated_at            = EXCLUDED.updated_at`

	for _, student := range students {
		if student.UpdatedAt.IsZero() {
			student.UpdatedAt = time.Now()
		}
		_, err := executor.ExecContext(ctx, query,
			student.GithubUsername, student.ForkCreatedAt, student.LastUpdatedAt,
			student.ResolutionTimeHours, student.HasFork, student.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert student %s: %w", student.GithubUsername, err)
		}
	}
	return nil
}

func (r *postgresStudentRepository) ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Student, error) {
	executor := r.getExecutor(exec)

	query := `
		SELECT id, github_username, fork_created_at, last_updated_at, resolution_time_hours, has_fork, updated_at
		FROM students
		ORDER BY github_username`

	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		var (
			s          models.Student
			forkAt     sql.NullTime
			updatedAt  sql.NullTime
			resolution sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.GithubUsername, &forkAt, &updatedAt, &resolution, &s.HasFork, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		s.ForkCreatedAt = nullTimeToPtr(forkAt)
		s.LastUpdatedAt = nullTimeToPtr(updatedAt)
		s.ResolutionTimeHours = nullIntToPtr(resolution)
		students = append(students, &s)
	}
	return students, rows.Err()
}
