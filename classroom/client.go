package classroom

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrGradesValidation = errors.New("grade export validation failed")
	ErrInvalidRepoURL   = errors.New("invalid repository URL")
)

// Classroom is one row of `gh classroom list`.
type Classroom struct {
	ID   string
	Name string
}

// AssignmentListing is one row of `gh classroom assignments`.
type AssignmentListing struct {
	ID           string
	Name         string
	RepoTemplate string
}

// GradeRow is one row of a per-assignment grade export CSV.
type GradeRow struct {
	GithubUsername  string `validate:"required"`
	PointsAwarded   *int
	PointsAvailable *int
	RepositoryURL   string
}

// RepositoryInfo is the subset of the GitHub repository object the sync
// cares about. Parent is nil when the repository is not a fork.
type RepositoryInfo struct {
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	PushedAt  time.Time         `json:"pushed_at"`
	FullName  string            `json:"full_name"`
	HTMLURL   string            `json:"html_url"`
	Fork      bool              `json:"fork"`
	Parent    *RepositoryParent `json:"parent"`
}

type RepositoryParent struct {
	FullName string `json:"full_name"`
}

// IsFork reports whether the repository was created from a template parent.
func (r *RepositoryInfo) IsFork() bool {
	return r.Fork || r.Parent != nil
}

// WorkflowStats summarizes the CI runs of one repository.
type WorkflowStats struct {
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
	FirstAttemptAt     *time.Time
	LastAttemptAt      *time.Time
}

// Client is the external classroom collaborator: listings and grade
// exports come from gh classroom subcommands, repository metadata and CI
// runs from gh api.
type Client interface {
	ListClassrooms(ctx context.Context) ([]Classroom, error)
	ListAssignments(ctx context.Context, classroomID string) ([]AssignmentListing, error)
	DownloadGrades(ctx context.Context, assignmentID string) ([]GradeRow, error)
	FetchRepository(ctx context.Context, repoURL string) (*RepositoryInfo, error)
	FetchWorkflowRuns(ctx context.Context, repoURL string) (*WorkflowStats, error)
}

type cliClient struct {
	runner   Runner
	validate *validator.Validate
	logger   *slog.Logger
}

func NewClient(runner Runner, logger *slog.Logger) Client {
	return &cliClient{
		runner:   runner,
		validate: validator.New(),
		logger:   logger,
	}
}

func (c *cliClient) ListClassrooms(ctx context.Context) ([]Classroom, error) {
	output, err := c.runner.Run(ctx, "classroom", "list")
	if err != nil {
		return nil, err
	}
	return ParseClassroomList(output)
}

func (c *cliClient) ListAssignments(ctx context.Context, classroomID string) ([]AssignmentListing, error) {
	output, err := c.runner.Run(ctx, "classroom", "assignments", "-c", classroomID)
	if err != nil {
		return nil, err
	}
	return ParseAssignmentList(output)
}

// DownloadGrades exports the assignment's grades to a temporary CSV file,
// parses and validates it. The file is removed before returning.
func (c *cliClient) DownloadGrades(ctx context.Context, assignmentID string) ([]GradeRow, error) {
	tmp, err := os.CreateTemp("", "classroom-grades-*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp grade file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if _, err := c.runner.Run(ctx, "classroom", "assignment-grades", "-a", assignmentID, "-f", path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grade export: %w", err)
	}
	defer f.Close()

	rows, err := c.parseGrades(f)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", assignmentID, err)
	}
	c.logger.Debug("downloaded grade export", slog.String("assignment_id", assignmentID), slog.Int("rows", len(rows)))
	return rows, nil
}

var requiredGradeColumns = []string{"github_username", "points_awarded", "points_available"}

func (c *cliClient) parseGrades(r io.Reader) ([]GradeRow, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGradesValidation, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty export", ErrGradesValidation)
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredGradeColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrGradesValidation, name)
		}
	}
	if len(records) == 1 {
		return nil, fmt.Errorf("%w: export has no data rows", ErrGradesValidation)
	}

	repoCol, hasRepoCol := columns["student_repository_url"]

	rows := make([]GradeRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := GradeRow{
			GithubUsername: strings.TrimSpace(record[columns["github_username"]]),
		}
		if row.PointsAwarded, err = parseOptionalInt(record[columns["points_awarded"]]); err != nil {
			return nil, fmt.Errorf("%w: bad points_awarded for %q: %v", ErrGradesValidation, row.GithubUsername, err)
		}
		if row.PointsAvailable, err = parseOptionalInt(record[columns["points_available"]]); err != nil {
			return nil, fmt.Errorf("%w: bad points_available for %q: %v", ErrGradesValidation, row.GithubUsername, err)
		}
		if hasRepoCol {
			row.RepositoryURL = strings.TrimSpace(record[repoCol])
		}
		if err := c.validate.Struct(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGradesValidation, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseOptionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if value, err := strconv.Atoi(raw); err == nil {
		return &value, nil
	}
	// Some exports render integral points as floats ("95.0").
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	value := int(f)
	return &value, nil
}

// FetchRepository reads the repository object through gh api, which shares
// authentication with the classroom subcommands.
func (c *cliClient) FetchRepository(ctx context.Context, repoURL string) (*RepositoryInfo, error) {
	owner, repo, err := splitRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	output, err := c.runner.Run(ctx, "api", fmt.Sprintf("repos/%s/%s", owner, repo))
	if err != nil {
		return nil, err
	}

	var info RepositoryInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		return nil, fmt.Errorf("failed to decode repository %s/%s: %w", owner, repo, err)
	}
	return &info, nil
}

type workflowRunsResponse struct {
	TotalCount   int `json:"total_count"`
	WorkflowRuns []struct {
		Conclusion string    `json:"conclusion"`
		CreatedAt  time.Time `json:"created_at"`
	} `json:"workflow_runs"`
}

// FetchWorkflowRuns reads up to the 100 most recent CI runs. The API
// returns runs newest first, so the first attempt is the last element.
func (c *cliClient) FetchWorkflowRuns(ctx context.Context, repoURL string) (*WorkflowStats, error) {
	owner, repo, err := splitRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	output, err := c.runner.Run(ctx, "api", fmt.Sprintf("repos/%s/%s/actions/runs?per_page=100", owner, repo))
	if err != nil {
		return nil, err
	}

	var resp workflowRunsResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode workflow runs for %s/%s: %w", owner, repo, err)
	}

	stats := &WorkflowStats{TotalAttempts: resp.TotalCount}
	for _, run := range resp.WorkflowRuns {
		switch run.Conclusion {
		case "success":
			stats.SuccessfulAttempts++
		case "failure":
			stats.FailedAttempts++
		}
	}
	if n := len(resp.WorkflowRuns); n > 0 {
		first := resp.WorkflowRuns[n-1].CreatedAt
		last := resp.WorkflowRuns[0].CreatedAt
		stats.FirstAttemptAt = &first
		stats.LastAttemptAt = &last
	}
	return stats, nil
}

func splitRepoURL(repoURL string) (string, string, error) {
	if repoURL == "" {
		return "", "", fmt.Errorf("%w: empty URL", ErrInvalidRepoURL)
	}
	trimmed := strings.TrimPrefix(repoURL, "https://github.com/")
	parts := strings.Split(strings.TrimSuffix(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoURL, repoURL)
	}
	return parts[0], parts[1], nil
}
