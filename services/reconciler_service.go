package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/B4OS-Dev/classroom-sync/classroom"
	"github.com/B4OS-Dev/classroom-sync/models"
	"github.com/B4OS-Dev/classroom-sync/utils"
)

// defaultFetchDelay is the pause between repository-metadata fetches, kept
// deliberately serial to respect external API quotas.
const defaultFetchDelay = 100 * time.Millisecond

// partTwoDefaultPoints covers part-2 assignments where the classroom API
// reports 0 points even though the assignment is graded out of 100.
const partTwoDefaultPoints = 100

// ReconcileResult is the consolidated output of one run over all
// assignments: the per-(student, assignment) grade and attempt records
// plus the per-student and per-assignment aggregates.
type ReconcileResult struct {
	Assignments []*models.Assignment
	Students    []*models.Student
	Grades      []*models.Grade
	Attempts    []*models.Attempt
}

// ReconcilerService merges grade exports, repository fork metadata and CI
// run summaries into a consistent record set.
type ReconcilerService interface {
	ProcessAssignments(ctx context.Context, listings []classroom.AssignmentListing) (*ReconcileResult, error)
}

type reconcilerService struct {
	client         classroom.Client
	searchUsername string
	fetchDelay     time.Duration
	logger         *slog.Logger
}

func NewReconcilerService(client classroom.Client, searchUsername string, logger *slog.Logger) ReconcilerService {
	return &reconcilerService{
		client:         client,
		searchUsername: searchUsername,
		fetchDelay:     defaultFetchDelay,
		logger:         logger,
	}
}

// ProcessAssignments walks every assignment listing sequentially. A failed
// grade download or an unusable assignment name skips that assignment;
// failed repository or CI fetches degrade that row to whatever data is
// available. Nothing here aborts the run.
func (s *reconcilerService) ProcessAssignments(ctx context.Context, listings []classroom.AssignmentListing) (*ReconcileResult, error) {
	result := &ReconcileResult{}
	students := make(map[string]*models.Student)
	seen := make(map[models.GradeKey]bool)

	for _, listing := range listings {
		s.logger.Info("processing assignment", slog.String("id", listing.ID), slog.String("name", listing.Name))

		rows, err := s.client.DownloadGrades(ctx, listing.ID)
		if err != nil {
			s.logger.Error("failed to download grades, skipping assignment",
				slog.String("assignment_id", listing.ID), slog.Any("error", err))
			continue
		}
		if len(rows) == 0 {
			s.logger.Warn("no grade rows for assignment", slog.String("assignment_id", listing.ID))
			continue
		}

		key, err := utils.NormalizeAssignmentName(listing.Name)
		if err != nil {
			s.logger.Error("unusable assignment name, skipping assignment",
				slog.String("name", listing.Name), slog.Any("error", err))
			continue
		}

		result.Assignments = append(result.Assignments, &models.Assignment{
			Name:            key,
			DisplayName:     listing.Name,
			PointsAvailable: s.resolvePointsAvailable(rows, key),
		})

		for _, row := range rows {
			s.logTrackedUser(row, key)

			grade := &models.Grade{
				GithubUsername: row.GithubUsername,
				AssignmentName: key,
				PointsAwarded:  row.PointsAwarded,
			}

			// Один grade на пару (студент, задание).
			if seen[grade.Key()] {
				s.logger.Warn("duplicate grade row, keeping the first",
					slog.String("github_username", row.GithubUsername), slog.String("assignment", key))
				continue
			}
			seen[grade.Key()] = true

			if row.RepositoryURL == "" {
				mergeStudentAggregate(students, plainStudent(row.GithubUsername))
				result.Grades = append(result.Grades, grade)
				continue
			}

			repoInfo, repoErr := s.client.FetchRepository(ctx, row.RepositoryURL)
			stats, runsErr := s.client.FetchWorkflowRuns(ctx, row.RepositoryURL)

			switch {
			case repoErr != nil:
				// Fetch failed: the repository state is unknown, keep the
				// grade and record the student without fork data.
				s.logger.Warn("repository fetch failed",
					slog.String("repo_url", row.RepositoryURL), slog.Any("error", repoErr))
				mergeStudentAggregate(students, plainStudent(row.GithubUsername))

			case repoInfo.IsFork():
				created := repoInfo.CreatedAt
				updated := repoInfo.UpdatedAt
				grade.ForkCreatedAt = &created
				grade.ForkUpdatedAt = &updated

				if runsErr != nil {
					s.logger.Debug("workflow run fetch failed",
						slog.String("repo_url", row.RepositoryURL), slog.Any("error", runsErr))
				} else if stats != nil {
					result.Attempts = append(result.Attempts, &models.Attempt{
						GithubUsername:     row.GithubUsername,
						AssignmentName:     key,
						RepoURL:            row.RepositoryURL,
						TotalAttempts:      stats.TotalAttempts,
						SuccessfulAttempts: stats.SuccessfulAttempts,
						FailedAttempts:     stats.FailedAttempts,
						FirstAttemptAt:     stats.FirstAttemptAt,
						LastAttemptAt:      stats.LastAttemptAt,
						ForkCreatedAt:      &created,
						ForkUpdatedAt:      &updated,
					})
				}

				mergeStudentAggregate(students, &models.Student{
					GithubUsername:      row.GithubUsername,
					ForkCreatedAt:       &created,
					LastUpdatedAt:       &updated,
					ResolutionTimeHours: resolutionHours(&created, &updated),
					HasFork:             true,
				})

			default:
				s.logger.Debug("repository exists but is not a fork", slog.String("repo_url", row.RepositoryURL))
				mergeStudentAggregate(students, plainStudent(row.GithubUsername))
			}

			result.Grades = append(result.Grades, grade)

			if s.fetchDelay > 0 {
				time.Sleep(s.fetchDelay)
			}
		}

		s.logger.Info("processed assignment", slog.String("assignment", key), slog.Int("grades", len(rows)))
	}

	for _, student := range students {
		result.Students = append(result.Students, student)
	}
	sort.Slice(result.Students, func(i, j int) bool {
		return result.Students[i].GithubUsername < result.Students[j].GithubUsername
	})

	return result, nil
}

func plainStudent(username string) *models.Student {
	return &models.Student{GithubUsername: username, HasFork: false}
}

// mergeStudentAggregate keeps one aggregate per username across all
// assignments, resolved deterministically regardless of assignment
// processing order: fork data always beats no fork data, and between two
// fork records the earlier fork_created_at wins (earlier last_updated_at
// breaks exact ties).
func mergeStudentAggregate(students map[string]*models.Student, candidate *models.Student) {
	existing, ok := students[candidate.GithubUsername]
	if !ok {
		students[candidate.GithubUsername] = candidate
		return
	}
	if !candidate.HasFork {
		return
	}
	if !existing.HasFork {
		students[candidate.GithubUsername] = candidate
		return
	}
	if earlierFork(candidate, existing) {
		students[candidate.GithubUsername] = candidate
	}
}

func earlierFork(a, b *models.Student) bool {
	switch {
	case a.ForkCreatedAt == nil:
		return false
	case b.ForkCreatedAt == nil:
		return true
	case a.ForkCreatedAt.Before(*b.ForkCreatedAt):
		return true
	case b.ForkCreatedAt.Before(*a.ForkCreatedAt):
		return false
	case a.LastUpdatedAt != nil && b.LastUpdatedAt != nil:
		return a.LastUpdatedAt.Before(*b.LastUpdatedAt)
	default:
		return false
	}
}

// resolutionHours is the whole number of hours between fork creation and
// the last repository update. Nil when either timestamp is missing; never
// a zero placeholder.
func resolutionHours(created, updated *time.Time) *int {
	if created == nil || updated == nil {
		return nil
	}
	hours := int(updated.Sub(*created).Hours())
	return &hours
}

// resolvePointsAvailable applies the fallback chain for assignments where
// the classroom export carries no usable points_available: maximum
// reported value, then the first strictly positive one, then the part-2
// default, then unset with a warning.
func (s *reconcilerService) resolvePointsAvailable(rows []classroom.GradeRow, key string) *int {
	maxPoints := 0
	for _, row := range rows {
		if row.PointsAvailable != nil && *row.PointsAvailable > maxPoints {
			maxPoints = *row.PointsAvailable
		}
	}
	if maxPoints > 0 {
		return &maxPoints
	}

	for _, row := range rows {
		if row.PointsAvailable != nil && *row.PointsAvailable > 0 {
			points := *row.PointsAvailable
			return &points
		}
	}

	if strings.Contains(key, "part-2") {
		points := partTwoDefaultPoints
		s.logger.Info("using part-2 default points", slog.String("assignment", key), slog.Int("points", points))
		return &points
	}

	s.logger.Warn("no non-zero points_available found", slog.String("assignment", key))
	return nil
}

func (s *reconcilerService) logTrackedUser(row classroom.GradeRow, assignment string) {
	if s.searchUsername == "" || !strings.EqualFold(row.GithubUsername, s.searchUsername) {
		return
	}
	points := 0
	if row.PointsAwarded != nil {
		points = *row.PointsAwarded
	}
	s.logger.Info("★ tracked user",
		slog.String("github_username", row.GithubUsername),
		slog.String("assignment", assignment),
		slog.Int("points_awarded", points),
	)
}
