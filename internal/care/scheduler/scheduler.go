package scheduler

import (
	"fmt"

	"pawpal/internal/care"
	"pawpal/internal/care/conflict"
)

// Schedule places ranked tasks against avail. The ranked order is taken as
// given; use rank.Rank to build it. Malformed tasks fail the whole run with
// a *care.InvalidTaskError before anything is placed.
//
// The result depends only on the inputs, so repeated runs are identical.
func Schedule(ranked []care.Task, avail Availability) (Plan, error) {
	for _, t := range ranked {
		if err := t.Validate(); err != nil {
			return Plan{}, err
		}
	}

	var plan Plan
	if avail.Minutes <= 0 {
		for _, t := range ranked {
			plan.reject(t.Clone(), 0)
		}
		return plan, nil
	}

	cursor := avail.Start
	remaining := avail.Minutes
	for _, src := range ranked {
		t := src.Clone()
		if at, ok := t.Fixed(); ok {
			plan.place(care.Placement{
				Task: t, Start: at, End: at.Add(t.DurationMinutes), Fixed: true, Reason: ReasonFixed,
			})
			continue
		}
		if remaining < t.DurationMinutes {
			plan.reject(t, remaining)
			continue
		}
		reason := ReasonFits
		if t.IsMedication {
			reason = ReasonMedication
		}
		plan.place(care.Placement{
			Task: t, Start: cursor, End: cursor.Add(t.DurationMinutes), Reason: reason,
		})
		cursor = cursor.Add(t.DurationMinutes)
		remaining -= t.DurationMinutes
	}
	plan.RemainingMinutes = remaining

	plan.Conflicts = conflict.Detect(plan.Placements)
	for _, c := range plan.Conflicts {
		plan.Explanation = append(plan.Explanation, "Conflict: "+describeConflict(c))
	}
	return plan, nil
}

func (p *Plan) place(pl care.Placement) {
	p.Placements = append(p.Placements, pl)
	p.Explanation = append(p.Explanation, explainPlacement(pl))
}

func (p *Plan) reject(t care.Task, remaining int) {
	p.Rejected = append(p.Rejected, Rejection{Task: t, Reason: ReasonInsufficientTime, Remaining: remaining})
	p.Explanation = append(p.Explanation, fmt.Sprintf(
		"Unable to schedule %s (%d min): %s, %d min remaining",
		t.Name, t.DurationMinutes, ReasonInsufficientTime, remaining))
}

func explainPlacement(pl care.Placement) string {
	span := pl.Start.String() + "-" + pl.End.String()
	t := pl.Task
	switch pl.Reason {
	case ReasonFixed:
		return fmt.Sprintf("%s %s: anchored at fixed time %s, not limited by availability", span, t.Name, pl.Start)
	case ReasonMedication:
		return fmt.Sprintf("%s %s: placed first: medication override", span, t.Name)
	default:
		return fmt.Sprintf("%s %s: %s (priority %s, %s)", span, t.Name, pl.Reason, t.Priority, prefLabel(t.TimePreference))
	}
}

func prefLabel(p care.TimePreference) string {
	if p == "" {
		return string(care.PreferFlexible)
	}
	return string(p)
}
