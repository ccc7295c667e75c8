package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах.
var ErrClassroomNotFound = errors.New("classroom not found")

// SinkErrorKind classifies a write-layer failure so callers can branch on
// the kind instead of unwrapping driver errors.
type SinkErrorKind string

const (
	// SinkTransient: the write failed but the same payload may succeed on
	// retry (connection loss, deadlock, serialization failure).
	SinkTransient SinkErrorKind = "transient"
	// SinkPermanent: retrying the identical payload cannot succeed
	// (constraint violation, schema mismatch).
	SinkPermanent SinkErrorKind = "permanent"
	// SinkExhausted: transient failures persisted through every allowed
	// attempt.
	SinkExhausted SinkErrorKind = "exhausted"
)

// SinkError reports a failed sink write, carrying the last underlying
// cause and the number of attempts made.
type SinkError struct {
	Table    string
	Kind     SinkErrorKind
	Attempts int
	Err      error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink write to %s failed (%s after %d attempt(s)): %v", e.Table, e.Kind, e.Attempts, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
