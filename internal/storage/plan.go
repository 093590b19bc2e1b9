package storage

import (
	"time"

	"pawpal/internal/care"
	"pawpal/internal/care/scheduler"
)

// PlanRecord is the stored form of one owner's plan for one day.
type PlanRecord struct {
	OwnerID          string         `json:"owner_id"`
	Date             care.Date      `json:"date"`
	GeneratedAt      time.Time      `json:"generated_at"`
	Window           care.Window    `json:"window"`
	Placements       []PlacedTask   `json:"placements"`
	Rejected         []RejectedTask `json:"rejected,omitempty"`
	Conflicts        []ConflictPair `json:"conflicts,omitempty"`
	Explanation      []string       `json:"explanation,omitempty"`
	RemainingMinutes int            `json:"remaining_minutes"`
}

type PlacedTask struct {
	TaskID string     `json:"task_id"`
	PetID  string     `json:"pet_id"`
	Name   string     `json:"name"`
	Start  care.Clock `json:"start"`
	End    care.Clock `json:"end"`
	Fixed  bool       `json:"fixed,omitempty"`
	Reason string     `json:"reason"`
}

type RejectedTask struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Remaining int    `json:"remaining"`
}

type ConflictPair struct {
	A     string     `json:"a"`
	B     string     `json:"b"`
	Start care.Clock `json:"start"`
	End   care.Clock `json:"end"`
}

// FromPlan flattens a scheduler plan for storage.
func FromPlan(ownerID string, day care.Date, w care.Window, p scheduler.Plan, at time.Time) PlanRecord {
	rec := PlanRecord{
		OwnerID:          ownerID,
		Date:             day,
		GeneratedAt:      at.UTC(),
		Window:           w,
		Placements:       make([]PlacedTask, 0, len(p.Placements)),
		Explanation:      append([]string(nil), p.Explanation...),
		RemainingMinutes: p.RemainingMinutes,
	}
	for _, pl := range p.Placements {
		rec.Placements = append(rec.Placements, PlacedTask{
			TaskID: pl.Task.ID, PetID: pl.Task.PetID, Name: pl.Task.Name,
			Start: pl.Start, End: pl.End, Fixed: pl.Fixed, Reason: pl.Reason,
		})
	}
	for _, r := range p.Rejected {
		rec.Rejected = append(rec.Rejected, RejectedTask{
			TaskID: r.Task.ID, Name: r.Task.Name, Reason: r.Reason, Remaining: r.Remaining,
		})
	}
	for _, c := range p.Conflicts {
		rec.Conflicts = append(rec.Conflicts, ConflictPair{A: c.A.Task.ID, B: c.B.Task.ID, Start: c.Start, End: c.End})
	}
	return rec
}
