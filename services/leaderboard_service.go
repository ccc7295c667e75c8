package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/B4OS-Dev/classroom-sync/models"
	"github.com/B4OS-Dev/classroom-sync/repositories"
)

// missingResolutionSentinel sorts students without a resolution time after
// everyone who has one.
const missingResolutionSentinel = 999999

// LeaderboardService recomputes the derived ranking from the full current
// sink snapshot, so it reflects cumulative history across runs, not just
// the records of the latest one.
type LeaderboardService interface {
	Refresh(ctx context.Context) ([]*models.LeaderboardEntry, error)
}

type leaderboardService struct {
	studentRepo    repositories.StudentRepository
	gradeRepo      repositories.GradeRepository
	assignmentRepo repositories.AssignmentRepository
	writer         SyncWriter
	logger         *slog.Logger
}

func NewLeaderboardService(
	studentRepo repositories.StudentRepository,
	gradeRepo repositories.GradeRepository,
	assignmentRepo repositories.AssignmentRepository,
	writer SyncWriter,
	logger *slog.Logger,
) LeaderboardService {
	return &leaderboardService{
		studentRepo:    studentRepo,
		gradeRepo:      gradeRepo,
		assignmentRepo: assignmentRepo,
		writer:         writer,
		logger:         logger,
	}
}

func (s *leaderboardService) Refresh(ctx context.Context) ([]*models.LeaderboardEntry, error) {
	students, err := s.studentRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("leaderboard refresh: %w", err)
	}
	if len(students) == 0 {
		s.logger.Warn("no students found for leaderboard")
		return nil, nil
	}

	grades, err := s.gradeRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("leaderboard refresh: %w", err)
	}
	assignments, err := s.assignmentRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("leaderboard refresh: %w", err)
	}

	entries := buildLeaderboard(students, grades, assignments)
	s.logger.Info("leaderboard calculated", slog.Int("students", len(entries)))

	if err := s.writer.ReplaceLeaderboard(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// buildLeaderboard computes scores and the strict ranking order: fastest
// resolution first, higher percentage breaks time ties, username breaks
// the rest, so the output is fully deterministic.
func buildLeaderboard(students []*models.Student, grades []*models.Grade, assignments []*models.Assignment) []*models.LeaderboardEntry {
	points := assignmentPointsTable(assignments, grades)

	// The percentage divisor is the system-wide assignment count: a
	// student who aced 1 of 4 assignments has 25%, not 100%.
	totalAssignments := len(assignments)
	if totalAssignments == 0 {
		totalAssignments = 1
	}

	gradesByUser := make(map[string][]*models.Grade, len(students))
	for _, g := range grades {
		gradesByUser[g.GithubUsername] = append(gradesByUser[g.GithubUsername], g)
	}

	entries := make([]*models.LeaderboardEntry, 0, len(students))
	for _, student := range students {
		studentGrades := gradesByUser[student.GithubUsername]

		totalScore := 0
		totalPossible := 0
		progress := 0.0
		completed := make(map[string]struct{}, len(studentGrades))

		for _, grade := range studentGrades {
			completed[grade.AssignmentName] = struct{}{}
			available := points[grade.AssignmentName]
			totalPossible += available
			if grade.PointsAwarded == nil {
				continue
			}
			totalScore += *grade.PointsAwarded
			if available > 0 {
				progress += float64(*grade.PointsAwarded) / float64(available) * 100
			}
		}

		entry := &models.LeaderboardEntry{
			GithubUsername:       student.GithubUsername,
			ForkCreatedAt:        student.ForkCreatedAt,
			LastUpdatedAt:        student.LastUpdatedAt,
			HasFork:              student.HasFork,
			TotalScore:           totalScore,
			TotalPossible:        totalPossible,
			Percentage:           int(math.Round(progress / float64(totalAssignments))),
			AssignmentsCompleted: len(completed),
		}
		if student.HasFork {
			entry.ResolutionTimeHours = resolutionHours(student.ForkCreatedAt, student.LastUpdatedAt)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		ri, rj := rankResolution(entries[i]), rankResolution(entries[j])
		if ri != rj {
			return ri < rj
		}
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		return entries[i].GithubUsername < entries[j].GithubUsername
	})
	for i, entry := range entries {
		entry.RankingPosition = i + 1
	}
	return entries
}

func rankResolution(entry *models.LeaderboardEntry) int {
	if entry.ResolutionTimeHours == nil {
		return missingResolutionSentinel
	}
	return *entry.ResolutionTimeHours
}

// assignmentPointsTable resolves points_available per assignment.
// Assignments the classroom left unconfigured fall back to the maximum
// points awarded observed across their grade rows.
func assignmentPointsTable(assignments []*models.Assignment, grades []*models.Grade) map[string]int {
	points := make(map[string]int, len(assignments))
	for _, a := range assignments {
		if a.PointsAvailable != nil && *a.PointsAvailable > 0 {
			points[a.Name] = *a.PointsAvailable
		}
	}

	maxAwarded := make(map[string]int)
	for _, g := range grades {
		if g.PointsAwarded != nil && *g.PointsAwarded > maxAwarded[g.AssignmentName] {
			maxAwarded[g.AssignmentName] = *g.PointsAwarded
		}
	}
	for name, awarded := range maxAwarded {
		if points[name] == 0 && awarded > 0 {
			points[name] = awarded
		}
	}
	return points
}
