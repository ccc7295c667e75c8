package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/B4OS-Dev/classroom-sync/models"
)

var ErrLeaderboardEntryNotFound = errors.New("leaderboard entry not found")

type LeaderboardRepository interface {
	DeleteAll(ctx context.Context, exec SQLExecutor) error
	InsertBatch(ctx context.Context, exec SQLExecutor, entries []*models.LeaderboardEntry) error
	Upsert(ctx context.Context, exec SQLExecutor, entry *models.LeaderboardEntry) error
	ListRanked(ctx context.Context, exec SQLExecutor) ([]*models.LeaderboardEntry, error)
	GetByUsername(ctx context.Context, exec SQLExecutor, username string) (*models.LeaderboardEntry, error)
}

type postgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &postgresLeaderboardRepository{db: db}
}

func (r *postgresLeaderboardRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLeaderboardRepository) DeleteAll(ctx context.Context, exec SQLExecutor) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM admin_leaderboard`); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}
	return nil
}

const leaderboardInsertQuery = `
	INSERT INTO admin_leaderboard
	    (github_username, fork_created_at, last_updated_at, resolution_time_hours, has_fork,
	     total_score, total_possible, percentage, assignments_completed, ranking_position)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *postgresLeaderboardRepository) InsertBatch(ctx context.Context, exec SQLExecutor, entries []*models.LeaderboardEntry) error {
	executor := r.getExecutor(exec)
	for _, entry := range entries {
		_, err := executor.ExecContext(ctx, leaderboardInsertQuery,
			entry.GithubUsername, entry.ForkCreatedAt, entry.LastUpdatedAt,
			entry.ResolutionTimeHours, entry.HasFork, entry.TotalScore,
			entry.TotalPossible, entry.Percentage, entry.AssignmentsCompleted,
			entry.RankingPosition,
		)
		if err != nil {
			return fmt.Errorf("insert leaderboard entry %s: %w", entry.GithubUsername, err)
		}
	}
	return nil
}

func (r *postgresLeaderboardRepository) Upsert(ctx context.Context, exec SQLExecutor, entry *models.LeaderboardEntry) error {
	executor := r.getExecutor(exec)
	query := leaderboardInsertQuery + `
	ON CONFLICT (github_username) DO UPDATE SET
		fork_created_at       = EXCLUDED.fork_created_at,
		last_updated_at       = EXCLUDED.last_updated_at,
		resolution_time_hours = EXCLUDED.resolution_time_hours,
		has_fork              = EXCLUDED.has_fork,
		total_score           = EXCLUDED.total_score,
		total_possible        = EXCLUDED.total_possible,
		percentage            = EXCLUDED.percentage,
		assignments_completed = EXCLUDED.assignments_completed,
		ranking_position      = EXCLUDED.ranking_position`

	_, err := executor.ExecContext(ctx, query,
		entry.GithubUsername, entry.ForkCreatedAt, entry.LastUpdatedAt,
		entry.ResolutionTimeHours, entry.HasFork, entry.TotalScore,
		entry.TotalPossible, entry.Percentage, entry.AssignmentsCompleted,
		entry.RankingPosition,
	)
	if err != nil {
		return fmt.Errorf("upsert leaderboard entry %s: %w", entry.GithubUsername, err)
	}
	return nil
}

const leaderboardSelectColumns = `
	github_username, fork_created_at, last_updated_at, resolution_time_hours, has_fork,
	total_score, total_possible, percentage, assignments_completed, ranking_position`

func (r *postgresLeaderboardRepository) ListRanked(ctx context.Context, exec SQLExecutor) ([]*models.LeaderboardEntry, error) {
	executor := r.getExecutor(exec)

	rows, err := executor.QueryContext(ctx, `SELECT`+leaderboardSelectColumns+` FROM admin_leaderboard ORDER BY ranking_position`)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		entry, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *postgresLeaderboardRepository) GetByUsername(ctx context.Context, exec SQLExecutor, username string) (*models.LeaderboardEntry, error) {
	executor := r.getExecutor(exec)

	row := executor.QueryRowContext(ctx,
		`SELECT`+leaderboardSelectColumns+` FROM admin_leaderboard WHERE github_username = $1`, username)

	entry, err := scanLeaderboardEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeaderboardEntryNotFound
	}
	return entry, err
}

func scanLeaderboardEntry(scanner interface{ Scan(...interface{}) error }) (*models.LeaderboardEntry, error) {
	var (
		e          models.LeaderboardEntry
		forkAt     sql.NullTime
		updatedAt  sql.NullTime
		resolution sql.NullInt64
	)
	err := scanner.Scan(
		&e.GithubUsername, &forkAt, &updatedAt, &resolution, &e.HasFork,
		&e.TotalScore, &e.TotalPossible, &e.Percentage, &e.AssignmentsCompleted,
		&e.RankingPosition,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan leaderboard entry: %w", err)
	}
	e.ForkCreatedAt = nullTimeToPtr(forkAt)
	e.LastUpdatedAt = nullTimeToPtr(updatedAt)
	e.ResolutionTimeHours = nullIntToPtr(resolution)
	return &e, nil
}
