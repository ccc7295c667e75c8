package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAssignmentName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"punctuation and spaces", "CS 101: Part 2!!", "cs-101-part-2"},
		{"already normalized", "cs-101-part-2", "cs-101-part-2"},
		{"whitespace runs", "The  Moria   Mining Codex", "the-moria-mining-codex"},
		{"repeated hyphens", "intro --- lab", "intro-lab"},
		{"leading and trailing junk", "  ##Lab 1##  ", "lab-1"},
		{"mixed case", "HeLLo World", "hello-world"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeAssignmentName(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeAssignmentName_Idempotent(t *testing.T) {
	inputs := []string{"CS 101: Part 2!!", "a   b", "--x--", "Assignment #7 (v2)"}
	for _, in := range inputs {
		once, err := NormalizeAssignmentName(in)
		require.NoError(t, err)
		twice, err := NormalizeAssignmentName(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalizing %q twice changed the key", in)
	}
}

func TestNormalizeAssignmentName_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "###"} {
		_, err := NormalizeAssignmentName(in)
		assert.ErrorIs(t, err, ErrEmptyAssignmentName, "input %q", in)
	}
}
