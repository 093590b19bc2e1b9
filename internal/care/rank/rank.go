// Package rank orders tasks by scheduling precedence:
// medication first, then priority (high to low), then time preference
// (morning, flexible, evening), then original position.
package rank

import (
	"cmp"
	"slices"

	"pawpal/internal/care"
)

// Key is the composite precedence of a task. Smaller keys rank first.
//
//	[0] 0 for medication, 1 otherwise
//	[1] negated priority
//	[2] time preference order (morning 0, flexible 1, evening 2)
type Key [3]int

// KeyOf builds the precedence key of t.
func KeyOf(t care.Task) Key {
	med := 1
	if t.IsMedication {
		med = 0
	}
	return Key{med, -int(t.Priority), t.TimePreference.Order()}
}

// Compare orders keys lexicographically.
func Compare(a, b Key) int {
	for i := range a {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Rank returns a new slice in precedence order. Tasks with equal keys keep
// their input order. The input is validated first and never modified.
func Rank(tasks []care.Task) ([]care.Task, error) {
	type entry struct {
		key Key
		pos int
	}
	entries := make([]entry, len(tasks))
	for i, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		entries[i] = entry{key: KeyOf(t), pos: i}
	}
	// Position is part of the comparison, so the result is stable
	// regardless of the sort algorithm.
	slices.SortFunc(entries, func(a, b entry) int {
		if c := Compare(a.key, b.key); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})
	out := make([]care.Task, 0, len(tasks))
	for _, e := range entries {
		out = append(out, tasks[e.pos].Clone())
	}
	return out, nil
}
