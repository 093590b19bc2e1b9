// Package query holds read-only views over a task collection. Every function
// returns a new slice of clones and leaves its input untouched.
package query

import (
	"slices"

	"pawpal/internal/care"
)

// SortByTime orders tasks by scheduled time. Untimed tasks follow all timed
// ones; ties keep input order.
func SortByTime(tasks []care.Task) []care.Task {
	out := care.CloneTasks(tasks)
	slices.SortStableFunc(out, compareTime)
	return out
}

func compareTime(a, b care.Task) int {
	at, aok := a.Fixed()
	bt, bok := b.Fixed()
	switch {
	case aok && bok:
		return int(at - bt)
	case aok:
		return -1
	case bok:
		return 1
	}
	return 0
}

// ByPet returns the tasks of one pet, time-sorted.
func ByPet(tasks []care.Task, petID string) []care.Task {
	return SortByTime(where(tasks, func(t care.Task) bool { return t.PetID == petID }))
}

// ByStatus returns tasks in status s, time-sorted. An empty stored status
// counts as pending.
func ByStatus(tasks []care.Task, s care.Status) []care.Task {
	want := s.Effective()
	return SortByTime(where(tasks, func(t care.Task) bool { return t.Status.Effective() == want }))
}

// ByTimeRange returns tasks whose scheduled time is in [start, end),
// time-sorted. Untimed tasks never match.
func ByTimeRange(tasks []care.Task, start, end care.Clock) []care.Task {
	return SortByTime(where(tasks, func(t care.Task) bool {
		at, ok := t.Fixed()
		return ok && at >= start && at < end
	}))
}

// DueOn returns the tasks to consider for a plan on day. Open tasks are due
// unless their next due date lies after day; completed tasks are due again
// only when they recur and their next due date has arrived.
func DueOn(tasks []care.Task, day care.Date) []care.Task {
	return where(tasks, func(t care.Task) bool { return IsDue(t, day) })
}

// IsDue reports whether t belongs on the plan for day.
func IsDue(t care.Task, day care.Date) bool {
	if t.NextDue != nil && t.NextDue.After(day) {
		return false
	}
	if t.Status.Effective() != care.StatusCompleted {
		return true
	}
	return t.Recurrence.IsRecurring() && t.NextDue != nil
}

// Filter combines the views above. Zero fields match everything.
type Filter struct {
	PetID  string
	Status care.Status
	From   *care.Clock
	To     *care.Clock
}

// Apply runs f over tasks and returns the matches time-sorted.
func (f Filter) Apply(tasks []care.Task) []care.Task {
	out := SortByTime(tasks)
	if f.PetID != "" {
		out = ByPet(out, f.PetID)
	}
	if f.Status != "" {
		out = ByStatus(out, f.Status)
	}
	if f.From != nil || f.To != nil {
		start, end := care.Clock(0), care.Clock(care.MinutesPerDay)
		if f.From != nil {
			start = *f.From
		}
		if f.To != nil {
			end = *f.To
		}
		out = ByTimeRange(out, start, end)
	}
	return out
}

func where(tasks []care.Task, keep func(care.Task) bool) []care.Task {
	var out []care.Task
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}
