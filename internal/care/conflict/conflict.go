// Package conflict finds overlapping placements in a day plan.
//
// Detection is pairwise; a day holds a handful of tasks, so no interval tree.
package conflict

import "pawpal/internal/care"

// Conflict is one unordered pair of overlapping placements.
// A precedes B in the input order; [Start, End) is the shared interval.
type Conflict struct {
	A     care.Placement
	B     care.Placement
	Start care.Clock
	End   care.Clock
}

// Detect reports every overlapping pair once. Containment counts as overlap;
// back-to-back placements do not. The input is not modified.
func Detect(placements []care.Placement) []Conflict {
	var out []Conflict
	for i := 0; i < len(placements); i++ {
		for j := i + 1; j < len(placements); j++ {
			a, b := placements[i], placements[j]
			if !a.Overlaps(b) {
				continue
			}
			out = append(out, Conflict{
				A:     a,
				B:     b,
				Start: max(a.Start, b.Start),
				End:   min(a.End, b.End),
			})
		}
	}
	return out
}
