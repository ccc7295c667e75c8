package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"

	"github.com/B4OS-Dev/classroom-sync/models"
	"github.com/B4OS-Dev/classroom-sync/repositories"
	"github.com/lib/pq"
)

// leaderboardBatchSize keeps snapshot writes small so one bad row can be
// isolated by the per-row fallback.
const leaderboardBatchSize = 10

// SyncWriter performs idempotent upserts into the sink, retrying transient
// failures with an identical payload and reporting final failures as
// *SinkError.
type SyncWriter interface {
	SyncStudents(ctx context.Context, students []*models.Student) error
	SyncAssignments(ctx context.Context, assignments []*models.Assignment) error
	SyncGrades(ctx context.Context, grades []*models.Grade) error
	SyncAttempts(ctx context.Context, attempts []*models.Attempt) (int, error)
	ReplaceLeaderboard(ctx context.Context, entries []*models.LeaderboardEntry) error
}

type syncWriter struct {
	studentRepo     repositories.StudentRepository
	assignmentRepo  repositories.AssignmentRepository
	gradeRepo       repositories.GradeRepository
	attemptRepo     repositories.AttemptRepository
	leaderboardRepo repositories.LeaderboardRepository
	maxRetries      int
	logger          *slog.Logger
}

func NewSyncWriter(
	studentRepo repositories.StudentRepository,
	assignmentRepo repositories.AssignmentRepository,
	gradeRepo repositories.GradeRepository,
	attemptRepo repositories.AttemptRepository,
	leaderboardRepo repositories.LeaderboardRepository,
	maxRetries int,
	logger *slog.Logger,
) SyncWriter {
	return &syncWriter{
		studentRepo:     studentRepo,
		assignmentRepo:  assignmentRepo,
		gradeRepo:       gradeRepo,
		attemptRepo:     attemptRepo,
		leaderboardRepo: leaderboardRepo,
		maxRetries:      maxRetries,
		logger:          logger,
	}
}

// withRetry runs op with the same payload until it succeeds, fails
// permanently, or transient failures exhaust the attempt budget.
func (w *syncWriter) withRetry(ctx context.Context, table string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransientSinkFailure(lastErr) {
			return &SinkError{Table: table, Kind: SinkPermanent, Attempts: attempt, Err: lastErr}
		}
		w.logger.Warn("transient sink failure, retrying",
			slog.String("table", table),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", w.maxRetries),
			slog.Any("error", lastErr),
		)
	}
	return &SinkError{Table: table, Kind: SinkExhausted, Attempts: w.maxRetries, Err: lastErr}
}

// isTransientSinkFailure reports whether retrying the identical payload can
// plausibly succeed: connection-level problems and concurrency aborts,
// never constraint or data errors.
func isTransientSinkFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection exception
			return true
		case pqErr.Code == "40001": // serialization_failure
			return true
		case pqErr.Code == "40P01": // deadlock_detected
			return true
		case pqErr.Code == "57P01": // admin_shutdown
			return true
		case pqErr.Code == "53300": // too_many_connections
			return true
		}
	}
	return false
}

func (w *syncWriter) SyncStudents(ctx context.Context, students []*models.Student) error {
	if len(students) == 0 {
		w.logger.Warn("no students to sync")
		return nil
	}

	withForks := 0
	for _, s := range students {
		if s.HasFork {
			withForks++
		}
	}

	err := w.withRetry(ctx, "students", func(ctx context.Context) error {
		return w.studentRepo.UpsertBatch(ctx, nil, students)
	})
	if err != nil {
		return err
	}
	w.logger.Info("synced students", slog.Int("count", len(students)), slog.Int("with_forks", withForks))
	return nil
}

func (w *syncWriter) SyncAssignments(ctx context.Context, assignments []*models.Assignment) error {
	if len(assignments) == 0 {
		w.logger.Warn("no assignments to sync")
		return nil
	}

	err := w.withRetry(ctx, "assignments", func(ctx context.Context) error {
		return w.assignmentRepo.UpsertBatch(ctx, nil, assignments)
	})
	if err != nil {
		return err
	}
	w.logger.Info("synced assignments", slog.Int("count", len(assignments)))
	return nil
}

func (w *syncWriter) SyncGrades(ctx context.Context, grades []*models.Grade) error {
	if len(grades) == 0 {
		w.logger.Warn("no grades to sync")
		return nil
	}

	err := w.withRetry(ctx, "grades", func(ctx context.Context) error {
		return w.gradeRepo.UpsertBatch(ctx, nil, grades)
	})
	if err != nil {
		return err
	}

	students := make(map[string]struct{})
	assignments := make(map[string]struct{})
	for _, g := range grades {
		students[g.GithubUsername] = struct{}{}
		assignments[g.AssignmentName] = struct{}{}
	}
	w.logger.Info("synced grades",
		slog.Int("count", len(grades)),
		slog.Int("students", len(students)),
		slog.Int("assignments", len(assignments)),
	)
	return nil
}

// SyncAttempts resolves natural keys to sink ids via freshly fetched
// lookups. Attempts whose username or assignment is unknown are skipped
// with a warning; they never fail the batch. Returns the number of rows
// actually written.
func (w *syncWriter) SyncAttempts(ctx context.Context, attempts []*models.Attempt) (int, error) {
	if len(attempts) == 0 {
		w.logger.Warn("no assignment attempts to sync")
		return 0, nil
	}

	students, err := w.studentRepo.ListAll(ctx, nil)
	if err != nil {
		return 0, &SinkError{Table: "assignment_attempts", Kind: SinkPermanent, Attempts: 1, Err: err}
	}
	assignments, err := w.assignmentRepo.ListAll(ctx, nil)
	if err != nil {
		return 0, &SinkError{Table: "assignment_attempts", Kind: SinkPermanent, Attempts: 1, Err: err}
	}

	userIDs := make(map[string]string, len(students))
	for _, s := range students {
		userIDs[s.GithubUsername] = s.ID
	}
	assignmentIDs := make(map[string]string, len(assignments))
	for _, a := range assignments {
		assignmentIDs[a.Name] = a.ID
	}

	rows := make([]repositories.AttemptRow, 0, len(attempts))
	for _, attempt := range attempts {
		userID, ok := userIDs[attempt.GithubUsername]
		if !ok {
			w.logger.Warn("attempt references unknown student, skipping", slog.String("github_username", attempt.GithubUsername))
			continue
		}
		assignmentID, ok := assignmentIDs[attempt.AssignmentName]
		if !ok {
			w.logger.Warn("attempt references unknown assignment, skipping", slog.String("assignment", attempt.AssignmentName))
			continue
		}
		rows = append(rows, repositories.AttemptRow{UserID: userID, AssignmentID: assignmentID, Attempt: attempt})
	}

	if len(rows) == 0 {
		w.logger.Warn("no resolvable assignment attempts to sync")
		return 0, nil
	}

	err = w.withRetry(ctx, "assignment_attempts", func(ctx context.Context) error {
		return w.attemptRepo.UpsertBatch(ctx, nil, rows)
	})
	if err != nil {
		return 0, err
	}
	w.logger.Info("synced assignment attempts", slog.Int("count", len(rows)), slog.Int("skipped", len(attempts)-len(rows)))
	return len(rows), nil
}

// ReplaceLeaderboard clears the prior snapshot and writes the new one in
// small batches. The clear is tolerated to fail (access control may forbid
// deletes); a failed batch falls back to per-row upserts so one bad row
// cannot block the rest.
func (w *syncWriter) ReplaceLeaderboard(ctx context.Context, entries []*models.LeaderboardEntry) error {
	if len(entries) == 0 {
		w.logger.Warn("no leaderboard entries to write")
		return nil
	}

	if err := w.leaderboardRepo.DeleteAll(ctx, nil); err != nil {
		w.logger.Warn("could not clear existing leaderboard, proceeding with upserts", slog.Any("error", err))
	}

	inserted, upserted, failed := 0, 0, 0
	for start := 0; start < len(entries); start += leaderboardBatchSize {
		end := start + leaderboardBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		if err := w.leaderboardRepo.InsertBatch(ctx, nil, batch); err == nil {
			inserted += len(batch)
			continue
		}

		for _, entry := range batch {
			if err := w.leaderboardRepo.Upsert(ctx, nil, entry); err != nil {
				failed++
				w.logger.Error("failed to upsert leaderboard entry", slog.String("github_username", entry.GithubUsername), slog.Any("error", err))
				continue
			}
			upserted++
		}
	}

	w.logger.Info("refreshed leaderboard",
		slog.Int("entries", len(entries)),
		slog.Int("inserted", inserted),
		slog.Int("upserted", upserted),
		slog.Int("failed", failed),
	)
	if inserted+upserted == 0 {
		return &SinkError{Table: "admin_leaderboard", Kind: SinkPermanent, Attempts: 1, Err: errors.New("no leaderboard rows could be written")}
	}
	return nil
}
