package classroom

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidListing = errors.New("invalid listing format")

// headerLines is the fixed preamble the gh classroom text tables print
// before the first data line.
const headerLines = 3

// ParseClassroomList parses the output of `gh classroom list`. Data lines
// are whitespace-delimited; the first two fields are id and name. Lines
// with fewer fields are ignored.
func ParseClassroomList(output string) ([]Classroom, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < headerLines+1 {
		return nil, fmt.Errorf("%w: classroom list has %d lines, expected at least %d", ErrInvalidListing, len(lines), headerLines+1)
	}

	var classrooms []Classroom
	for _, line := range lines[headerLines:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			classrooms = append(classrooms, Classroom{ID: parts[0], Name: parts[1]})
		}
	}
	return classrooms, nil
}

// ParseAssignmentList parses the output of `gh classroom assignments`.
// Data lines are tab-delimited with at least 7 fields; fields 0, 1 and 6
// carry the assignment id, name and repository template.
func ParseAssignmentList(output string) ([]AssignmentListing, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < headerLines+1 {
		return nil, fmt.Errorf("%w: assignment list has %d lines, expected at least %d", ErrInvalidListing, len(lines), headerLines+1)
	}

	var assignments []AssignmentListing
	for i, line := range lines[headerLines:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			return nil, fmt.Errorf("%w: assignment line %d has %d fields, expected at least 7", ErrInvalidListing, i+headerLines+1, len(parts))
		}
		assignments = append(assignments, AssignmentListing{
			ID:           parts[0],
			Name:         parts[1],
			RepoTemplate: parts[6],
		})
	}
	return assignments, nil
}
