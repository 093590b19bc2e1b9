package scheduler

import (
	"errors"
	"fmt"

	"pawpal/internal/care"
	"pawpal/internal/care/recurrence"
)

// MarkComplete transitions t to completed as of on. Recurring tasks get their
// next due date recomputed; other tasks have theirs cleared. Completing a task
// that is already completed changes nothing.
//
// The returned message is meant for the person who completed the task.
func MarkComplete(t *care.Task, on care.Date) (string, error) {
	if t == nil {
		return "", errors.New("task is nil")
	}
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.Status == care.StatusCompleted {
		return fmt.Sprintf("%s is already completed.", t.Name), nil
	}
	t.Status = care.StatusCompleted
	next, ok := recurrence.Next(t.Recurrence, on)
	if !ok {
		t.NextDue = nil
		return fmt.Sprintf("%s marked complete.", t.Name), nil
	}
	t.NextDue = &next
	return fmt.Sprintf("%s marked complete. Next due: %s", t.Name, next), nil
}
