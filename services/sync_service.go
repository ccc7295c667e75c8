package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/B4OS-Dev/classroom-sync/classroom"
	"github.com/B4OS-Dev/classroom-sync/live"
	"github.com/B4OS-Dev/classroom-sync/models"
	"github.com/B4OS-Dev/classroom-sync/storage"
	"github.com/google/uuid"
)

// SyncService drives one full sync run: classroom lookup, assignment
// listing, reconciliation, sink writes and the leaderboard refresh.
type SyncService interface {
	RunSync(ctx context.Context) (*models.SyncSummary, error)
}

type syncService struct {
	client           classroom.Client
	reconciler       ReconcilerService
	writer           SyncWriter
	leaderboard      LeaderboardService
	archiver         storage.FileUploader // optional
	hub              *live.Hub            // optional
	classroomName    string
	assignmentFilter string
	logger           *slog.Logger
}

func NewSyncService(
	client classroom.Client,
	reconciler ReconcilerService,
	writer SyncWriter,
	leaderboard LeaderboardService,
	archiver storage.FileUploader,
	hub *live.Hub,
	classroomName string,
	assignmentFilter string,
	logger *slog.Logger,
) SyncService {
	return &syncService{
		client:           client,
		reconciler:       reconciler,
		writer:           writer,
		leaderboard:      leaderboard,
		archiver:         archiver,
		hub:              hub,
		classroomName:    classroomName,
		assignmentFilter: assignmentFilter,
		logger:           logger,
	}
}

// RunSync aborts only on the two mandatory calls (classroom lookup,
// assignment listing) and on exhausted sink writes. Everything else
// degrades to skip-and-continue.
func (s *syncService) RunSync(ctx context.Context) (*models.SyncSummary, error) {
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID))
	logger.Info("starting classroom sync", slog.String("classroom", s.classroomName))

	classrooms, err := s.client.ListClassrooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list classrooms: %w", err)
	}

	classroomID := ""
	for _, c := range classrooms {
		if c.Name == s.classroomName {
			classroomID = c.ID
			break
		}
	}
	if classroomID == "" {
		return nil, fmt.Errorf("%w: %s", ErrClassroomNotFound, s.classroomName)
	}
	logger.Info("found classroom", slog.String("classroom_id", classroomID))

	listings, err := s.client.ListAssignments(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	if s.assignmentFilter != "" {
		filtered := listings[:0]
		for _, listing := range listings {
			if listing.ID == s.assignmentFilter {
				filtered = append(filtered, listing)
			}
		}
		listings = filtered
		logger.Info("filtered to specific assignment", slog.String("assignment_id", s.assignmentFilter))
	}
	if len(listings) == 0 {
		logger.Warn("no assignments found")
		return &models.SyncSummary{RunID: runID}, nil
	}

	result, err := s.reconciler.ProcessAssignments(ctx, listings)
	if err != nil {
		return nil, err
	}
	if len(result.Grades) == 0 {
		logger.Warn("sync completed but no grade data was processed")
		return &models.SyncSummary{RunID: runID}, nil
	}

	if err := s.writer.SyncAssignments(ctx, result.Assignments); err != nil {
		return nil, err
	}
	if err := s.writer.SyncStudents(ctx, result.Students); err != nil {
		return nil, err
	}
	if err := s.writer.SyncGrades(ctx, result.Grades); err != nil {
		return nil, err
	}
	attemptCount, err := s.writer.SyncAttempts(ctx, result.Attempts)
	if err != nil {
		return nil, err
	}

	entries, err := s.leaderboard.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	s.archiveExport(ctx, logger, runID, result.Grades)

	if s.hub != nil && len(entries) > 0 {
		s.hub.BroadcastLeaderboard(entries)
	}

	summary := &models.SyncSummary{
		RunID:          runID,
		Students:       len(result.Students),
		Assignments:    len(result.Assignments),
		GradeRecords:   len(result.Grades),
		AttemptRecords: attemptCount,
	}
	logger.Info("sync completed successfully",
		slog.Int("students", summary.Students),
		slog.Int("assignments", summary.Assignments),
		slog.Int("grade_records", summary.GradeRecords),
		slog.Int("attempt_records", summary.AttemptRecords),
	)
	return summary, nil
}

// archiveExport uploads the consolidated grade set as a CSV snapshot.
// Archiving is best effort; failures are logged and never fail the run.
func (s *syncService) archiveExport(ctx context.Context, logger *slog.Logger, runID string, grades []*models.Grade) {
	if s.archiver == nil {
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"github_username", "assignment_name", "points_awarded", "fork_created_at", "fork_updated_at"})
	for _, g := range grades {
		_ = w.Write([]string{
			g.GithubUsername,
			g.AssignmentName,
			optionalIntField(g.PointsAwarded),
			optionalTimeField(g.ForkCreatedAt),
			optionalTimeField(g.ForkUpdatedAt),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Error("failed to build export archive", slog.Any("error", err))
		return
	}

	key := fmt.Sprintf("exports/%s.csv", runID)
	if _, err := s.archiver.Upload(ctx, key, "text/csv", &buf); err != nil {
		logger.Error("failed to archive grade export", slog.String("key", key), slog.Any("error", err))
		return
	}
	logger.Info("archived grade export", slog.String("key", key))
}

func optionalIntField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalTimeField(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
