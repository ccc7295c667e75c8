package models

import "time"

// GradeKey identifies a grade or attempt record: one per student per
// assignment. Comparable, so it can be used directly as a map key.
type GradeKey struct {
	Username   string
	Assignment string
}

// Grade is one graded submission row. Uniquely keyed by
// (github_username, assignment_name); a re-sync overwrites in place.
type Grade struct {
	GithubUsername string     `json:"github_username"`
	AssignmentName string     `json:"assignment_name"`
	PointsAwarded  *int       `json:"points_awarded"`
	ForkCreatedAt  *time.Time `json:"fork_created_at"`
	ForkUpdatedAt  *time.Time `json:"fork_updated_at"`
}

// Key returns the natural key of the grade row.
func (g *Grade) Key() GradeKey {
	return GradeKey{Username: g.GithubUsername, Assignment: g.AssignmentName}
}
