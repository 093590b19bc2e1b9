package care

import (
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Task is one pet-care task record.
type Task struct {
	ID              string         `json:"id"`
	PetID           string         `json:"pet_id"`
	Name            string         `json:"name"`
	Category        string         `json:"category,omitempty"`
	DurationMinutes int            `json:"duration_minutes"`
	Priority        Priority       `json:"priority"`
	IsMedication    bool           `json:"is_medication"`
	TimePreference  TimePreference `json:"time_preference,omitempty"`
	ScheduledTime   *Clock         `json:"scheduled_time,omitempty"`
	Status          Status         `json:"status,omitempty"`
	Recurrence      Recurrence     `json:"recurrence"`
	NextDue         *Date          `json:"next_due_date,omitempty"`
}

// NewTaskID returns a fresh random task id.
func NewTaskID() string { return uuid.NewString() }

// Fixed returns the anchored start time, if any.
func (t Task) Fixed() (Clock, bool) {
	if t.ScheduledTime == nil {
		return 0, false
	}
	return *t.ScheduledTime, true
}

// Validate checks the record invariants. Errors are *InvalidTaskError.
func (t Task) Validate() error {
	if t.DurationMinutes <= 0 {
		return t.fail("duration_minutes", strconv.Itoa(t.DurationMinutes), "must be > 0")
	}
	if !t.Priority.Valid() {
		return t.fail("priority", strconv.Itoa(int(t.Priority)), "must be 1..5")
	}
	if !t.TimePreference.Valid() {
		return t.fail("time_preference", string(t.TimePreference), "expected morning|flexible|evening")
	}
	if !t.Status.Valid() {
		return t.fail("status", string(t.Status), "expected pending|in_progress|completed")
	}
	if c, ok := t.Fixed(); ok && (c < 0 || int(c) >= MinutesPerDay) {
		return t.fail("scheduled_time", c.String(), "must be within 00:00..23:59")
	}
	if err := t.Recurrence.Validate(); err != nil {
		if ie, ok := err.(*InvalidTaskError); ok {
			ie.TaskID = t.ID
		}
		return err
	}
	return nil
}

func (t Task) fail(field, value, reason string) error {
	return &InvalidTaskError{TaskID: t.ID, Field: field, Value: value, Reason: reason}
}

// Clone returns a deep copy so callers can mutate it freely.
func (t Task) Clone() Task {
	out := t
	if t.ScheduledTime != nil {
		c := *t.ScheduledTime
		out.ScheduledTime = &c
	}
	if t.NextDue != nil {
		d := *t.NextDue
		out.NextDue = &d
	}
	out.Recurrence.Weekdays = slices.Clone(t.Recurrence.Weekdays)
	return out
}

// CloneTasks deep-copies a task slice.
func CloneTasks(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
