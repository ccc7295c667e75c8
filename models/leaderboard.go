package models

import "time"

// LeaderboardEntry is one row of the derived ranking. The whole set is
// rebuilt from scratch on every sync run and replaces the prior snapshot.
type LeaderboardEntry struct {
	GithubUsername       string     `json:"github_username"`
	ForkCreatedAt        *time.Time `json:"fork_created_at"`
	LastUpdatedAt        *time.Time `json:"last_updated_at"`
	ResolutionTimeHours  *int       `json:"resolution_time_hours"`
	HasFork              bool       `json:"has_fork"`
	TotalScore           int        `json:"total_score"`
	TotalPossible        int        `json:"total_possible"`
	Percentage           int        `json:"percentage"`
	AssignmentsCompleted int        `json:"assignments_completed"`
	RankingPosition      int        `json:"ranking_position"`
}
