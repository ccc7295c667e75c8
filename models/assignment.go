package models

import "time"

// Assignment is one classroom assignment as stored in the sink.
// Name is the normalized key (see utils.NormalizeAssignmentName);
// collisions after normalization merge into a single row.
type Assignment struct {
	ID              string    `json:"id,omitempty"`
	Name            string    `json:"name"`
	DisplayName     string    `json:"display_name,omitempty"`
	PointsAvailable *int      `json:"points_available"`
	UpdatedAt       time.Time `json:"updated_at"`
}
