package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"testing"

	"github.com/B4OS-Dev/classroom-sync/models"
	"github.com/B4OS-Dev/classroom-sync/repositories"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub repositories with scripted failures. The errs slice is consumed one
// element per call; a nil element means that call succeeds.

type stubStudentRepo struct {
	errs     []error
	calls    int
	students []*models.Student
	listErr  error
}

func (s *stubStudentRepo) nextErr() error {
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *stubStudentRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, students []*models.Student) error {
	s.calls++
	return s.nextErr()
}

func (s *stubStudentRepo) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Student, error) {
	return s.students, s.listErr
}

type stubAssignmentRepo struct {
	calls       int
	assignments []*models.Assignment
}

func (s *stubAssignmentRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, assignments []*models.Assignment) error {
	s.calls++
	return nil
}

func (s *stubAssignmentRepo) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Assignment, error) {
	return s.assignments, nil
}

type stubGradeRepo struct {
	calls int
}

func (s *stubGradeRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, grades []*models.Grade) error {
	s.calls++
	return nil
}

func (s *stubGradeRepo) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Grade, error) {
	return nil, nil
}

type stubAttemptRepo struct {
	rows [][]repositories.AttemptRow
}

func (s *stubAttemptRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, rows []repositories.AttemptRow) error {
	s.rows = append(s.rows, rows)
	return nil
}

type stubLeaderboardRepo struct {
	deleteErr     error
	insertErr     error
	upsertFail    map[string]bool
	inserted      [][]*models.LeaderboardEntry
	upserted      []string
	upsertedCalls int
}

func (s *stubLeaderboardRepo) DeleteAll(ctx context.Context, exec repositories.SQLExecutor) error {
	return s.deleteErr
}

func (s *stubLeaderboardRepo) InsertBatch(ctx context.Context, exec repositories.SQLExecutor, entries []*models.LeaderboardEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, entries)
	return nil
}

func (s *stubLeaderboardRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, entry *models.LeaderboardEntry) error {
	s.upsertedCalls++
	if s.upsertFail[entry.GithubUsername] {
		return errors.New("row rejected")
	}
	s.upserted = append(s.upserted, entry.GithubUsername)
	return nil
}

func (s *stubLeaderboardRepo) ListRanked(ctx context.Context, exec repositories.SQLExecutor) ([]*models.LeaderboardEntry, error) {
	return nil, nil
}

func (s *stubLeaderboardRepo) GetByUsername(ctx context.Context, exec repositories.SQLExecutor, username string) (*models.LeaderboardEntry, error) {
	return nil, repositories.ErrLeaderboardEntryNotFound
}

func newTestWriter(students *stubStudentRepo, assignments *stubAssignmentRepo, attempts *stubAttemptRepo, leaderboard *stubLeaderboardRepo, maxRetries int) SyncWriter {
	if students == nil {
		students = &stubStudentRepo{}
	}
	if assignments == nil {
		assignments = &stubAssignmentRepo{}
	}
	if attempts == nil {
		attempts = &stubAttemptRepo{}
	}
	if leaderboard == nil {
		leaderboard = &stubLeaderboardRepo{}
	}
	return NewSyncWriter(students, assignments, &stubGradeRepo{}, attempts, leaderboard, maxRetries, discardLogger())
}

func TestSyncStudentsRetriesTransientFailures(t *testing.T) {
	repo := &stubStudentRepo{errs: []error{driver.ErrBadConn, driver.ErrBadConn, nil}}
	writer := newTestWriter(repo, nil, nil, nil, 3)

	err := writer.SyncStudents(context.Background(), []*models.Student{{GithubUsername: "alice"}})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestSyncStudentsExhaustsRetryBudget(t *testing.T) {
	repo := &stubStudentRepo{errs: []error{driver.ErrBadConn, driver.ErrBadConn, driver.ErrBadConn}}
	writer := newTestWriter(repo, nil, nil, nil, 3)

	err := writer.SyncStudents(context.Background(), []*models.Student{{GithubUsername: "alice"}})
	require.Error(t, err)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, SinkExhausted, sinkErr.Kind)
	assert.Equal(t, "students", sinkErr.Table)
	assert.Equal(t, 3, sinkErr.Attempts)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, 3, repo.calls)
}

func TestSyncStudentsDoesNotRetryPermanentFailures(t *testing.T) {
	cause := &pq.Error{Code: "23505"} // unique_violation
	repo := &stubStudentRepo{errs: []error{cause}}
	writer := newTestWriter(repo, nil, nil, nil, 3)

	err := writer.SyncStudents(context.Background(), []*models.Student{{GithubUsername: "alice"}})
	require.Error(t, err)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, SinkPermanent, sinkErr.Kind)
	assert.Equal(t, 1, sinkErr.Attempts)
	assert.Equal(t, 1, repo.calls, "permanent failures must not be retried")
}

func TestIsTransientSinkFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad connection", driver.ErrBadConn, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"connection exception class", &pq.Error{Code: "08006"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"not null violation", &pq.Error{Code: "23502"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientSinkFailure(tt.err))
		})
	}
}

func TestSyncAttemptsSkipsUnresolvableRows(t *testing.T) {
	students := &stubStudentRepo{students: []*models.Student{{ID: "u1", GithubUsername: "alice"}}}
	assignments := &stubAssignmentRepo{assignments: []*models.Assignment{{ID: "a1", Name: "hw-1"}}}
	attempts := &stubAttemptRepo{}
	writer := newTestWriter(students, assignments, attempts, nil, 3)

	written, err := writer.SyncAttempts(context.Background(), []*models.Attempt{
		{GithubUsername: "alice", AssignmentName: "hw-1"},
		{GithubUsername: "ghost", AssignmentName: "hw-1"},
		{GithubUsername: "alice", AssignmentName: "hw-unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	require.Len(t, attempts.rows, 1)
	require.Len(t, attempts.rows[0], 1)
	assert.Equal(t, "u1", attempts.rows[0][0].UserID)
	assert.Equal(t, "a1", attempts.rows[0][0].AssignmentID)
}

func TestSyncAttemptsEmptyInput(t *testing.T) {
	attempts := &stubAttemptRepo{}
	writer := newTestWriter(nil, nil, attempts, nil, 3)

	written, err := writer.SyncAttempts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Empty(t, attempts.rows)
}

func TestReplaceLeaderboardBatchesInserts(t *testing.T) {
	repo := &stubLeaderboardRepo{}
	writer := newTestWriter(nil, nil, nil, repo, 3)

	entries := make([]*models.LeaderboardEntry, 23)
	for i := range entries {
		entries[i] = &models.LeaderboardEntry{GithubUsername: string(rune('a' + i))}
	}

	require.NoError(t, writer.ReplaceLeaderboard(context.Background(), entries))
	require.Len(t, repo.inserted, 3)
	assert.Len(t, repo.inserted[0], 10)
	assert.Len(t, repo.inserted[1], 10)
	assert.Len(t, repo.inserted[2], 3)
	assert.Zero(t, repo.upsertedCalls)
}

func TestReplaceLeaderboardFallsBackToPerRowUpserts(t *testing.T) {
	repo := &stubLeaderboardRepo{
		insertErr:  errors.New("batch rejected"),
		upsertFail: map[string]bool{"bob": true},
	}
	writer := newTestWriter(nil, nil, nil, repo, 3)

	err := writer.ReplaceLeaderboard(context.Background(), []*models.LeaderboardEntry{
		{GithubUsername: "alice"},
		{GithubUsername: "bob"},
		{GithubUsername: "carol"},
	})
	require.NoError(t, err, "a partially written snapshot is not a failure")
	assert.Equal(t, []string{"alice", "carol"}, repo.upserted)
}

func TestReplaceLeaderboardFailsWhenNothingWritten(t *testing.T) {
	repo := &stubLeaderboardRepo{
		insertErr:  errors.New("batch rejected"),
		upsertFail: map[string]bool{"alice": true},
	}
	writer := newTestWriter(nil, nil, nil, repo, 3)

	err := writer.ReplaceLeaderboard(context.Background(), []*models.LeaderboardEntry{{GithubUsername: "alice"}})
	require.Error(t, err)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "admin_leaderboard", sinkErr.Table)
}

func TestReplaceLeaderboardToleratesFailedClear(t *testing.T) {
	repo := &stubLeaderboardRepo{deleteErr: errors.New("permission denied")}
	writer := newTestWriter(nil, nil, nil, repo, 3)

	err := writer.ReplaceLeaderboard(context.Background(), []*models.LeaderboardEntry{{GithubUsername: "alice"}})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
}
