package classroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const classroomListOutput = "" +
	"Classrooms\n" +
	"\n" +
	"ID      NAME\n" +
	"123456  b4os-2025  extra\n" +
	"789012  other-cohort\n"

func TestParseClassroomList(t *testing.T) {
	classrooms, err := ParseClassroomList(classroomListOutput)
	require.NoError(t, err)
	require.Len(t, classrooms, 2)
	assert.Equal(t, Classroom{ID: "123456", Name: "b4os-2025"}, classrooms[0])
	assert.Equal(t, Classroom{ID: "789012", Name: "other-cohort"}, classrooms[1])
}

func TestParseClassroomList_TooShort(t *testing.T) {
	_, err := ParseClassroomList("Classrooms\n\nID NAME\n")
	assert.ErrorIs(t, err, ErrInvalidListing)
}

func assignmentLine(fields ...string) string {
	line := ""
	for i, f := range fields {
		if i > 0 {
			line += "\t"
		}
		line += f
	}
	return line
}

func TestParseAssignmentList(t *testing.T) {
	output := "Assignments\n\nID\tTITLE\n" +
		assignmentLine("11", "The Moria Mining Codex Part 1", "x", "x", "x", "x", "org/codex-part-1") + "\n" +
		assignmentLine("22", "The Moria Mining Codex Part 2", "x", "x", "x", "x", "org/codex-part-2") + "\n"

	assignments, err := ParseAssignmentList(output)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, AssignmentListing{ID: "11", Name: "The Moria Mining Codex Part 1", RepoTemplate: "org/codex-part-1"}, assignments[0])
	assert.Equal(t, "22", assignments[1].ID)
}

func TestParseAssignmentList_ShortDataLine(t *testing.T) {
	output := "Assignments\n\nID\tTITLE\n" +
		assignmentLine("11", "Only", "three") + "\n"
	_, err := ParseAssignmentList(output)
	assert.ErrorIs(t, err, ErrInvalidListing)
}

func TestParseAssignmentList_TooFewLines(t *testing.T) {
	_, err := ParseAssignmentList("Assignments\n\nID\tTITLE")
	assert.ErrorIs(t, err, ErrInvalidListing)
}
