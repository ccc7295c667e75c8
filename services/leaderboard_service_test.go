package services

import (
	"context"
	"testing"
	"time"

	"github.com/B4OS-Dev/classroom-sync/models"
	"github.com/B4OS-Dev/classroom-sync/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStudentRepo and friends serve a fixed snapshot, standing in for the
// cumulative sink state the ranker reads.

type memStudentRepo struct {
	students []*models.Student
}

func (m *memStudentRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, students []*models.Student) error {
	return nil
}

func (m *memStudentRepo) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Student, error) {
	return m.students, nil
}

type memGradeRepo struct {
	grades []*models.Grade
}

func (m *memGradeRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, grades []*models.Grade) error {
	return nil
}

func (m *memGradeRepo) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Grade, error) {
	return m.grades, nil
}

type memAssignmentRepo struct {
	assignments []*models.Assignment
}

func (m *memAssignmentRepo) UpsertBatch(ctx context.Context, exec repositories.SQLExecutor, assignments []*models.Assignment) error {
	return nil
}

func (m *memAssignmentRepo) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Assignment, error) {
	return m.assignments, nil
}

// recordingWriter captures everything handed to the sink.
type recordingWriter struct {
	students    []*models.Student
	assignments []*models.Assignment
	grades      []*models.Grade
	attempts    []*models.Attempt
	leaderboard []*models.LeaderboardEntry
	err         error
}

func (w *recordingWriter) SyncStudents(ctx context.Context, students []*models.Student) error {
	w.students = students
	return w.err
}

func (w *recordingWriter) SyncAssignments(ctx context.Context, assignments []*models.Assignment) error {
	w.assignments = assignments
	return w.err
}

func (w *recordingWriter) SyncGrades(ctx context.Context, grades []*models.Grade) error {
	w.grades = grades
	return w.err
}

func (w *recordingWriter) SyncAttempts(ctx context.Context, attempts []*models.Attempt) (int, error) {
	w.attempts = attempts
	return len(attempts), w.err
}

func (w *recordingWriter) ReplaceLeaderboard(ctx context.Context, entries []*models.LeaderboardEntry) error {
	w.leaderboard = entries
	return w.err
}

func forkStudent(username string, created time.Time, hours int) *models.Student {
	updated := created.Add(time.Duration(hours) * time.Hour)
	return &models.Student{
		GithubUsername: username,
		HasFork:        true,
		ForkCreatedAt:  timePtr(created),
		LastUpdatedAt:  timePtr(updated),
	}
}

func TestBuildLeaderboardRanking(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	students := []*models.Student{
		forkStudent("alice", base, 10),
		forkStudent("bob", base, 10),
		{GithubUsername: "carol", HasFork: false},
	}
	assignments := []*models.Assignment{
		{Name: "hw-1", PointsAvailable: intPtr(100)},
	}
	grades := []*models.Grade{
		{GithubUsername: "alice", AssignmentName: "hw-1", PointsAwarded: intPtr(80)},
		{GithubUsername: "bob", AssignmentName: "hw-1", PointsAwarded: intPtr(90)},
		{GithubUsername: "carol", AssignmentName: "hw-1", PointsAwarded: intPtr(100)},
	}

	entries := buildLeaderboard(students, grades, assignments)
	require.Len(t, entries, 3)

	// Equal resolution time: higher percentage first. Missing resolution
	// time sorts last even with a perfect score.
	assert.Equal(t, "bob", entries[0].GithubUsername)
	assert.Equal(t, "alice", entries[1].GithubUsername)
	assert.Equal(t, "carol", entries[2].GithubUsername)

	for i, entry := range entries {
		assert.Equal(t, i+1, entry.RankingPosition)
	}

	assert.Equal(t, 90, entries[0].Percentage)
	require.NotNil(t, entries[0].ResolutionTimeHours)
	assert.Equal(t, 10, *entries[0].ResolutionTimeHours)
	assert.Nil(t, entries[2].ResolutionTimeHours)
}

func TestBuildLeaderboardUsernameBreaksFullTies(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	students := []*models.Student{
		forkStudent("zoe", base, 5),
		forkStudent("amy", base, 5),
	}
	assignments := []*models.Assignment{{Name: "hw-1", PointsAvailable: intPtr(10)}}
	grades := []*models.Grade{
		{GithubUsername: "zoe", AssignmentName: "hw-1", PointsAwarded: intPtr(10)},
		{GithubUsername: "amy", AssignmentName: "hw-1", PointsAwarded: intPtr(10)},
	}

	entries := buildLeaderboard(students, grades, assignments)
	require.Len(t, entries, 2)
	assert.Equal(t, "amy", entries[0].GithubUsername)
	assert.Equal(t, "zoe", entries[1].GithubUsername)
}

func TestBuildLeaderboardPercentageUsesSystemWideDivisor(t *testing.T) {
	students := []*models.Student{{GithubUsername: "alice"}}
	assignments := []*models.Assignment{
		{Name: "hw-1", PointsAvailable: intPtr(100)},
		{Name: "hw-2", PointsAvailable: intPtr(100)},
		{Name: "hw-3", PointsAvailable: intPtr(100)},
		{Name: "hw-4", PointsAvailable: intPtr(100)},
	}
	grades := []*models.Grade{
		{GithubUsername: "alice", AssignmentName: "hw-1", PointsAwarded: intPtr(100)},
	}

	entries := buildLeaderboard(students, grades, assignments)
	require.Len(t, entries, 1)
	assert.Equal(t, 25, entries[0].Percentage, "one aced assignment of four is 25%, not 100%")
	assert.Equal(t, 1, entries[0].AssignmentsCompleted)
	assert.Equal(t, 100, entries[0].TotalScore)
	assert.Equal(t, 100, entries[0].TotalPossible)
}

func TestBuildLeaderboardSkipsNilAwards(t *testing.T) {
	students := []*models.Student{{GithubUsername: "alice"}}
	assignments := []*models.Assignment{{Name: "hw-1", PointsAvailable: intPtr(100)}}
	grades := []*models.Grade{
		{GithubUsername: "alice", AssignmentName: "hw-1", PointsAwarded: nil},
	}

	entries := buildLeaderboard(students, grades, assignments)
	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].TotalScore)
	assert.Zero(t, entries[0].Percentage)
	assert.Equal(t, 1, entries[0].AssignmentsCompleted, "a null-award row still counts as a touched assignment")
}

func TestAssignmentPointsTableFallsBackToMaxAwarded(t *testing.T) {
	assignments := []*models.Assignment{
		{Name: "hw-1", PointsAvailable: nil},
		{Name: "hw-2", PointsAvailable: intPtr(50)},
	}
	grades := []*models.Grade{
		{GithubUsername: "alice", AssignmentName: "hw-1", PointsAwarded: intPtr(30)},
		{GithubUsername: "bob", AssignmentName: "hw-1", PointsAwarded: intPtr(40)},
	}

	points := assignmentPointsTable(assignments, grades)
	assert.Equal(t, 40, points["hw-1"], "unconfigured assignments use the best observed score")
	assert.Equal(t, 50, points["hw-2"])
}

func TestRefreshWritesSnapshot(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	writer := &recordingWriter{}
	svc := NewLeaderboardService(
		&memStudentRepo{students: []*models.Student{forkStudent("alice", base, 3)}},
		&memGradeRepo{grades: []*models.Grade{{GithubUsername: "alice", AssignmentName: "hw-1", PointsAwarded: intPtr(10)}}},
		&memAssignmentRepo{assignments: []*models.Assignment{{Name: "hw-1", PointsAvailable: intPtr(10)}}},
		writer,
		discardLogger(),
	)

	entries, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entries, writer.leaderboard)
}

func TestRefreshWithNoStudents(t *testing.T) {
	writer := &recordingWriter{}
	svc := NewLeaderboardService(&memStudentRepo{}, &memGradeRepo{}, &memAssignmentRepo{}, writer, discardLogger())

	entries, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Nil(t, writer.leaderboard, "nothing is written when the sink has no students")
}
