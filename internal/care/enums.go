package care

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Priority is a 1..5 level, 5 being the most important.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 3
	PriorityHigh   Priority = 5

	MinPriority = PriorityLow
	MaxPriority = PriorityHigh
)

// ParsePriority accepts "low", "medium", "high" or a digit 1..5.
func ParsePriority(raw string) (Priority, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium", "med":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Priority(n).Valid() {
		return 0, invalid("priority", raw, "expected low|medium|high or 1..5")
	}
	return Priority(n), nil
}

// UnmarshalJSON takes a number or any form ParsePriority accepts. Numbers
// are range checked by Task.Validate so the error can name the task.
func (p *Priority) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		return nil
	case strings.HasPrefix(s, `"`):
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		v, err := ParsePriority(raw)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return invalid("priority", s, "expected low|medium|high or 1..5")
	}
	*p = Priority(n)
	return nil
}

func (p Priority) Valid() bool { return p >= MinPriority && p <= MaxPriority }

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return strconv.Itoa(int(p))
	}
}

// TimePreference is the part of the day a task would rather happen in.
// The zero value means flexible.
type TimePreference string

const (
	PreferMorning  TimePreference = "morning"
	PreferFlexible TimePreference = "flexible"
	PreferEvening  TimePreference = "evening"
)

func ParseTimePreference(raw string) (TimePreference, error) {
	p := TimePreference(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", invalid("time_preference", raw, "expected morning|flexible|evening")
	}
	if p == "" {
		return PreferFlexible, nil
	}
	return p, nil
}

func (p TimePreference) Valid() bool {
	switch p {
	case "", PreferMorning, PreferFlexible, PreferEvening:
		return true
	}
	return false
}

// Order is the scheduling precedence of p: morning 0, flexible 1, evening 2.
func (p TimePreference) Order() int {
	switch p {
	case PreferMorning:
		return 0
	case PreferEvening:
		return 2
	default:
		return 1
	}
}

// Status is the lifecycle state of a task. The zero value means pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" || !s.Valid() {
		return "", invalid("status", raw, "expected pending|in_progress|completed")
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case "", StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Effective maps the zero value to StatusPending.
func (s Status) Effective() Status {
	if s == "" {
		return StatusPending
	}
	return s
}
