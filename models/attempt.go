package models

import "time"

// Attempt aggregates the CI workflow runs of one student repository for one
// assignment. Only produced for confirmed forks that have run data. The
// sink keys attempts by (user_id, assignment_id); username and assignment
// name are resolved to ids at write time.
type Attempt struct {
	GithubUsername     string     `json:"github_username"`
	AssignmentName     string     `json:"assignment_name"`
	RepoURL            string     `json:"repo_url"`
	TotalAttempts      int        `json:"total_attempts"`
	SuccessfulAttempts int        `json:"successful_attempts"`
	FailedAttempts     int        `json:"failed_attempts"`
	FirstAttemptAt     *time.Time `json:"first_attempt_at"`
	LastAttemptAt      *time.Time `json:"last_attempt_at"`
	ForkCreatedAt      *time.Time `json:"fork_created_at"`
	ForkUpdatedAt      *time.Time `json:"fork_updated_at"`
}
