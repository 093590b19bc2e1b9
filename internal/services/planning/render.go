package planning

import (
	"fmt"
	"strings"
)

// Render formats a plan as plain chat text.
func Render(res *Result) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	who := res.Owner.Name
	if who == "" {
		who = res.Owner.ID
	}
	fmt.Fprintf(&b, "Plan for %s, %s (%s)\n", who, res.Date, res.Window)

	placed := res.Plan.ByTime()
	if len(placed) == 0 {
		b.WriteString("\nNothing scheduled.\n")
	} else {
		b.WriteString("\n")
		for _, p := range placed {
			fmt.Fprintf(&b, "%s-%s  %s%s [%s]\n", p.Start, p.End, p.Task.Name, petSuffix(res, p.Task.PetID), p.Reason)
		}
	}

	if len(res.Plan.Rejected) > 0 {
		b.WriteString("\nNot scheduled:\n")
		for _, r := range res.Plan.Rejected {
			fmt.Fprintf(&b, "- %s%s: %s, %d min left\n", r.Task.Name, petSuffix(res, r.Task.PetID), r.Reason, r.Remaining)
		}
	}
	if res.Plan.HasConflicts() {
		b.WriteString("\nConflicts:\n")
		b.WriteString(res.Plan.ConflictSummary())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%d min unused.", res.Plan.RemainingMinutes)
	return b.String()
}

func petSuffix(res *Result, petID string) string {
	if petID == "" {
		return ""
	}
	if name := res.Owner.PetName(petID); name != "" {
		return " (" + name + ")"
	}
	return ""
}
