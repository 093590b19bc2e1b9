package care

import (
	"slices"
	"strings"
	"time"
)

type RecurrenceKind string

const (
	RecurNone          RecurrenceKind = "none"
	RecurDaily         RecurrenceKind = "daily"
	RecurEveryOtherDay RecurrenceKind = "every_other_day"
	RecurWeekly        RecurrenceKind = "weekly"
)

// Recurrence is the rule that decides a task's next due date on completion.
//
// Text form: "none", "daily", "every_other_day", "weekly:monday[,thursday...]".
// The zero value is "none".
type Recurrence struct {
	Kind     RecurrenceKind
	Weekdays []time.Weekday // weekly only, sorted and unique
}

func Daily() Recurrence         { return Recurrence{Kind: RecurDaily} }
func EveryOtherDay() Recurrence { return Recurrence{Kind: RecurEveryOtherDay} }

// Weekly returns a weekly rule for the given weekdays.
func Weekly(days ...time.Weekday) Recurrence {
	ds := slices.Clone(days)
	slices.Sort(ds)
	return Recurrence{Kind: RecurWeekly, Weekdays: slices.Compact(ds)}
}

func (r Recurrence) IsRecurring() bool { return r.Kind != "" && r.Kind != RecurNone }

// Includes reports whether a weekly rule fires on wd.
func (r Recurrence) Includes(wd time.Weekday) bool { return slices.Contains(r.Weekdays, wd) }

func (r Recurrence) Validate() error {
	switch r.Kind {
	case "", RecurNone, RecurDaily, RecurEveryOtherDay:
		if len(r.Weekdays) > 0 {
			return invalid("recurrence", r.String(), "weekdays only apply to weekly rules")
		}
		return nil
	case RecurWeekly:
		if len(r.Weekdays) == 0 {
			return invalid("recurrence", r.String(), "weekly rule needs at least one weekday")
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return invalid("recurrence", r.String(), "weekday out of range")
			}
		}
		return nil
	default:
		return invalid("recurrence", string(r.Kind), "expected none|daily|every_other_day|weekly:<day>")
	}
}

func (r Recurrence) String() string {
	switch r.Kind {
	case "":
		return string(RecurNone)
	case RecurWeekly:
		names := make([]string, 0, len(r.Weekdays))
		for _, wd := range r.Weekdays {
			names = append(names, strings.ToLower(wd.String()))
		}
		return string(RecurWeekly) + ":" + strings.Join(names, ",")
	default:
		return string(r.Kind)
	}
}

func ParseRecurrence(raw string) (Recurrence, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	kind, rest, _ := strings.Cut(s, ":")
	switch RecurrenceKind(kind) {
	case "", RecurNone:
		return Recurrence{Kind: RecurNone}, nil
	case RecurDaily, RecurEveryOtherDay:
		if rest != "" {
			return Recurrence{}, invalid("recurrence", raw, "weekdays only apply to weekly rules")
		}
		return Recurrence{Kind: RecurrenceKind(kind)}, nil
	case RecurWeekly:
		var days []time.Weekday
		for _, name := range strings.Split(rest, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			wd, ok := parseWeekday(name)
			if !ok {
				return Recurrence{}, invalid("recurrence", raw, "unknown weekday "+name)
			}
			days = append(days, wd)
		}
		r := Weekly(days...)
		if err := r.Validate(); err != nil {
			return Recurrence{}, invalid("recurrence", raw, "weekly rule needs at least one weekday")
		}
		return r, nil
	default:
		return Recurrence{}, invalid("recurrence", raw, "expected none|daily|every_other_day|weekly:<day>")
	}
}

func parseWeekday(s string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if s == full || s == full[:3] {
			return wd, true
		}
	}
	return 0, false
}

func (r Recurrence) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Recurrence) UnmarshalText(b []byte) error {
	v, err := ParseRecurrence(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
