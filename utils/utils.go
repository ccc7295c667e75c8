package utils

import (
	"errors"
	"regexp"
	"strings"
)

var ErrEmptyAssignmentName = errors.New("assignment name must be a non-empty string")

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	hyphenRuns      = regexp.MustCompile(`-+`)
)

// NormalizeAssignmentName converts a raw assignment display name into the
// stable key used everywhere downstream: lowercase, only [a-z0-9-],
// whitespace and repeated hyphens collapsed to a single hyphen, no leading
// or trailing hyphens. Idempotent: a normalized key passes through
// unchanged.
func NormalizeAssignmentName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptyAssignmentName
	}

	formatted := strings.ToLower(name)
	formatted = disallowedChars.ReplaceAllString(formatted, "")
	formatted = whitespaceRuns.ReplaceAllString(formatted, "-")
	formatted = hyphenRuns.ReplaceAllString(formatted, "-")
	formatted = strings.Trim(formatted, "-")

	if formatted == "" {
		return "", ErrEmptyAssignmentName
	}
	return formatted, nil
}
