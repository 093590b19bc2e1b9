package scheduler

import (
	"fmt"
	"slices"
	"strings"

	"pawpal/internal/care"
	"pawpal/internal/care/conflict"
)

// Placement and rejection reasons.
const (
	ReasonFixed            = "fixed time"
	ReasonFits             = "fits remaining availability"
	ReasonMedication       = "medication priority"
	ReasonInsufficientTime = "insufficient_time"
)

// Availability is the free-placement budget: the cursor starts at Start and
// at most Minutes of free tasks are placed.
type Availability struct {
	Start   care.Clock
	Minutes int
}

// FromWindow converts a day window into a budget.
func FromWindow(w care.Window) Availability {
	return Availability{Start: w.Start, Minutes: w.Minutes()}
}

// Rejection is a task left out of the plan. It is an outcome, not an error.
type Rejection struct {
	Task      care.Task
	Reason    string
	Remaining int // budget left when the task was considered
}

// Plan is the scheduler output.
type Plan struct {
	Placements       []care.Placement
	Rejected         []Rejection
	Conflicts        []conflict.Conflict
	Explanation      []string
	RemainingMinutes int
}

// ByTime returns placements ordered by start time; equal starts keep plan order.
func (p Plan) ByTime() []care.Placement {
	out := slices.Clone(p.Placements)
	slices.SortStableFunc(out, func(a, b care.Placement) int { return int(a.Start - b.Start) })
	return out
}

func (p Plan) HasConflicts() bool { return len(p.Conflicts) > 0 }

// ConflictSummary names both tasks of every reported conflict.
func (p Plan) ConflictSummary() string {
	if len(p.Conflicts) == 0 {
		return "No conflicts."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d conflict(s) found:", len(p.Conflicts))
	for _, c := range p.Conflicts {
		b.WriteString("\n- ")
		b.WriteString(describeConflict(c))
	}
	return b.String()
}

// ExplanationText joins the explanation lines.
func (p Plan) ExplanationText() string { return strings.Join(p.Explanation, "\n") }

// Placed reports whether task id made it into the plan.
func (p Plan) Placed(id string) (care.Placement, bool) {
	for _, pl := range p.Placements {
		if pl.Task.ID == id {
			return pl, true
		}
	}
	return care.Placement{}, false
}

func describeConflict(c conflict.Conflict) string {
	return fmt.Sprintf("%s (%s-%s) overlaps %s (%s-%s) during %s-%s",
		c.A.Task.Name, c.A.Start, c.A.End,
		c.B.Task.Name, c.B.Start, c.B.End,
		c.Start, c.End)
}
