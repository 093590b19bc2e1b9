package care

import (
	"errors"
	"fmt"
)

// ErrInvalidTask matches every *InvalidTaskError via errors.Is.
var ErrInvalidTask = errors.New("invalid task")

// InvalidTaskError reports a malformed task record: non-positive duration,
// malformed time string or unknown enum value.
type InvalidTaskError struct {
	TaskID string
	Field  string
	Value  string
	Reason string
}

func (e *InvalidTaskError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("invalid task: %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid task %q: %s %q: %s", e.TaskID, e.Field, e.Value, e.Reason)
}

func (e *InvalidTaskError) Is(target error) bool { return target == ErrInvalidTask }

func invalid(field, value, reason string) *InvalidTaskError {
	return &InvalidTaskError{Field: field, Value: value, Reason: reason}
}
