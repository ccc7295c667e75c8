package models

import "time"

// Student is the per-username aggregate record. Fork timestamps are only
// present when the student's repository is a confirmed fork; otherwise they
// stay nil and HasFork is false.
type Student struct {
	ID                  string     `json:"id,omitempty"`
	GithubUsername      string     `json:"github_username"`
	ForkCreatedAt       *time.Time `json:"fork_created_at"`
	LastUpdatedAt       *time.Time `json:"last_updated_at"`
	ResolutionTimeHours *int       `json:"resolution_time_hours"`
	HasFork             bool       `json:"has_fork"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
