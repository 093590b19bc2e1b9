// Package recurrence computes the next due date of a completed task.
package recurrence

import "pawpal/internal/care"

// Next returns the next due date for rule after a completion on completed.
// ok is false for non-recurring rules; the caller clears or leaves the due date.
//
// Weekly rules return the nearest date strictly after completed whose weekday
// is in the rule, so a completion on a matching weekday moves a full week ahead.
func Next(rule care.Recurrence, completed care.Date) (next care.Date, ok bool) {
	switch rule.Kind {
	case care.RecurDaily:
		return completed.AddDays(1), true
	case care.RecurEveryOtherDay:
		return completed.AddDays(2), true
	case care.RecurWeekly:
		if len(rule.Weekdays) == 0 {
			return care.Date{}, false
		}
		for n := 1; n <= 7; n++ {
			d := completed.AddDays(n)
			if rule.Includes(d.Weekday()) {
				return d, true
			}
		}
		return care.Date{}, false
	default:
		return care.Date{}, false
	}
}

// NextFor is Next on t's own rule.
func NextFor(t care.Task, completed care.Date) (care.Date, bool) {
	return Next(t.Recurrence, completed)
}
