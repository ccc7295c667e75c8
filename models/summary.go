package models

// SyncSummary reports what a completed sync run processed.
type SyncSummary struct {
	RunID          string `json:"run_id"`
	Students       int    `json:"students"`
	Assignments    int    `json:"assignments"`
	GradeRecords   int    `json:"grade_records"`
	AttemptRecords int    `json:"attempt_records"`
}
