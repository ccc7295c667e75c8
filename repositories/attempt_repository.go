package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/B4OS-Dev/classroom-sync/models"
)

// AttemptRow is an attempt with its natural keys already resolved to the
// sink's student and assignment ids.
type AttemptRow struct {
	UserID       string
	AssignmentID string
	Attempt      *models.Attempt
}

type AttemptRepository interface {
	UpsertBatch(ctx context.Context, exec SQLExecutor, rows []AttemptRow) error
}

type postgresAttemptRepository struct {
	db *sql.DB
}

func NewPostgresAttemptRepository(db *sql.DB) AttemptRepository {
	return &postgresAttemptRepository{db: db}
}

func (r *postgresAttemptRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAttemptRepository) UpsertBatch(ctx context.Context, exec SQLExecutor, rows []AttemptRow) error {
	if len(rows) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO assignment_attempts
		    (user_id, assignment_id, repo_url, total_attempts, successful_attempts, failed_attempts,
		     first_attempt_at, last_attempt_at, fork_created_at, fork_updated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, assignment_id) DO UPDATE SET
			repo_url            = EXCLUDED.repo_url,
			total_attempts      = EXCLUDED.total_attempts,
			successful_attempts = EXCLUDED.successful_attempts,
			failed_attempts     = EXCLUDED.failed_attempts,
			first_attempt_at    = EXCLUDED.first_attempt_at,
			last_attempt_at     = EXCLUDED.last_attempt_at,
			fork_created_at     = EXCLUDED.fork_created_at,
			fork_updated_at     = EXCLUDED.fork_updated_at,
			updated_at          = EXCLUDED.updated_at`

	now := time.Now()
	for _, row := range rows {
		a := row.Attempt
		_, err := executor.ExecContext(ctx, query,
			row.UserID, row.AssignmentID, a.RepoURL,
			a.TotalAttempts, a.SuccessfulAttempts, a.FailedAttempts,
			a.FirstAttemptAt, a.LastAttemptAt, a.ForkCreatedAt, a.ForkUpdatedAt, now,
		)
		if err != nil {
			return fmt.Errorf("upsert attempt %s/%s: %w", a.GithubUsername, a.AssignmentName, err)
		}
	}
	return nil
}
