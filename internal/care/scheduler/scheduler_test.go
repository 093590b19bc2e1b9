package scheduler

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"pawpal/internal/care"
	"pawpal/internal/care/rank"
)

func clockPtr(s string) *care.Clock {
	c := care.MustClock(s)
	return &c
}

func free(id string, minutes int, prio care.Priority) care.Task {
	return care.Task{ID: id, PetID: "p1", Name: id, DurationMinutes: minutes, Priority: prio}
}

func window(t *testing.T, raw string) Availability {
	t.Helper()
	w, err := care.ParseWindow(raw)
	if err != nil {
		t.Fatalf("ParseWindow(%q): %v", raw, err)
	}
	return FromWindow(w)
}

func mustRankSchedule(t *testing.T, tasks []care.Task, avail Availability) Plan {
	t.Helper()
	ranked, err := rank.Rank(tasks)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	plan, err := Schedule(ranked, avail)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	return plan
}

func TestScheduleAvailabilityBoundary(t *testing.T) {
	t.Parallel()
	plan, err := Schedule([]care.Task{free("a", 30, 3), free("b", 40, 3)}, Availability{Start: care.MustClock("09:00"), Minutes: 60})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(plan.Placements) != 1 || plan.Placements[0].Task.ID != "a" {
		t.Fatalf("placements = %+v, want only a", plan.Placements)
	}
	if len(plan.Rejected) != 1 || plan.Rejected[0].Task.ID != "b" || plan.Rejected[0].Reason != ReasonInsufficientTime {
		t.Fatalf("rejected = %+v, want b with insufficient_time", plan.Rejected)
	}
	if plan.RemainingMinutes != 30 {
		t.Fatalf("RemainingMinutes = %d, want 30", plan.RemainingMinutes)
	}
}

func TestScheduleContinuesAfterRejection(t *testing.T) {
	t.Parallel()
	plan, err := Schedule([]care.Task{free("big", 50, 5), free("huge", 40, 4), free("small", 10, 1)}, Availability{Minutes: 60})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, ok := plan.Placed("small"); !ok {
		t.Fatal("small task should still be placed after a rejection")
	}
	if got := plan.Placements[1].Start.String(); got != "00:50" {
		t.Fatalf("small starts at %s, want 00:50", got)
	}
	if len(plan.Rejected) != 1 || plan.Rejected[0].Task.ID != "huge" || plan.Rejected[0].Remaining != 10 {
		t.Fatalf("rejected = %+v", plan.Rejected)
	}
}

func TestScheduleEndToEnd(t *testing.T) {
	t.Parallel()
	med := care.Task{ID: "med", Name: "Medication", DurationMinutes: 20, Priority: care.PriorityMedium, IsMedication: true, ScheduledTime: clockPtr("08:00")}
	walk := care.Task{ID: "walk", Name: "Walk", DurationMinutes: 30, Priority: care.PriorityHigh, TimePreference: care.PreferMorning}
	play := care.Task{ID: "play", Name: "Play", DurationMinutes: 15, Priority: care.PriorityLow, TimePreference: care.PreferEvening}

	plan := mustRankSchedule(t, []care.Task{play, walk, med}, window(t, "08:00-09:00"))

	got := map[string]string{}
	for _, p := range plan.Placements {
		got[p.Task.ID] = p.Start.String() + "-" + p.End.String()
	}
	want := map[string]string{"med": "08:00-08:20", "walk": "08:00-08:30", "play": "08:30-08:45"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("placements = %v, want %v", got, want)
	}
	if plan.Placements[0].Task.ID != "med" || !plan.Placements[0].Fixed {
		t.Fatalf("first placement = %+v, want fixed med", plan.Placements[0])
	}
	if len(plan.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(plan.Conflicts))
	}
	c := plan.Conflicts[0]
	if c.A.Task.ID != "med" || c.B.Task.ID != "walk" || c.Start.String() != "08:00" || c.End.String() != "08:20" {
		t.Fatalf("conflict = %s/%s %s-%s", c.A.Task.ID, c.B.Task.ID, c.Start, c.End)
	}
	if len(plan.Rejected) != 0 || plan.RemainingMinutes != 15 {
		t.Fatalf("rejected=%d remaining=%d", len(plan.Rejected), plan.RemainingMinutes)
	}
}

func TestScheduleFixedIgnoresBudget(t *testing.T) {
	t.Parallel()
	fixed := free("fixed", 120, 1)
	fixed.ScheduledTime = clockPtr("18:00")
	plan, err := Schedule([]care.Task{fixed, free("free", 30, 1)}, Availability{Start: care.MustClock("09:00"), Minutes: 30})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(plan.Placements) != 2 || plan.RemainingMinutes != 0 {
		t.Fatalf("placements=%d remaining=%d", len(plan.Placements), plan.RemainingMinutes)
	}
	if p, _ := plan.Placed("free"); p.Start.String() != "09:00" {
		t.Fatalf("free placed at %s, want cursor 09:00", p.Start)
	}
}

// A fixed task fully inside a free placement is still a conflict pair.
func TestScheduleContainmentConflict(t *testing.T) {
	t.Parallel()
	fixed := free("fixed", 15, 1)
	fixed.ScheduledTime = clockPtr("09:15")
	plan, err := Schedule([]care.Task{free("long", 60, 5), fixed}, window(t, "09:00-12:00"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(plan.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(plan.Conflicts))
	}
	if c := plan.Conflicts[0]; c.Start.String() != "09:15" || c.End.String() != "09:30" {
		t.Fatalf("overlap = %s-%s", c.Start, c.End)
	}
}

func TestScheduleMedicationOverride(t *testing.T) {
	t.Parallel()
	tasks := []care.Task{
		free("walk", 40, care.PriorityHigh),
		free("groom", 30, care.PriorityHigh),
		{ID: "pill", Name: "pill", DurationMinutes: 10, Priority: care.PriorityLow, IsMedication: true},
	}
	plan := mustRankSchedule(t, tasks, Availability{Start: care.MustClock("07:00"), Minutes: 50})
	if plan.Placements[0].Task.ID != "pill" || plan.Placements[0].Reason != ReasonMedication {
		t.Fatalf("first placement = %+v, want pill with medication reason", plan.Placements[0])
	}
	for _, r := range plan.Rejected {
		if r.Task.IsMedication {
			t.Fatalf("medication rejected: %+v", r)
		}
	}
	if !strings.Contains(plan.Explanation[0], "medication override") {
		t.Fatalf("explanation[0] = %q", plan.Explanation[0])
	}
}

func TestScheduleMedicationLargerThanBudget(t *testing.T) {
	t.Parallel()
	med := care.Task{ID: "med", Name: "Critical Medication", DurationMinutes: 300, Priority: 5, IsMedication: true}
	plan := mustRankSchedule(t, []care.Task{med}, window(t, "9-12"))
	if len(plan.Rejected) != 1 || plan.Rejected[0].Task.ID != "med" {
		t.Fatalf("rejected = %+v, want med", plan.Rejected)
	}
}

func TestScheduleNonPositiveBudget(t *testing.T) {
	t.Parallel()
	fixed := free("fixed", 10, 1)
	fixed.ScheduledTime = clockPtr("08:00")
	for _, minutes := range []int{0, -30} {
		plan, err := Schedule([]care.Task{free("a", 5, 1), fixed}, Availability{Minutes: minutes})
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if len(plan.Placements) != 0 || len(plan.Rejected) != 2 {
			t.Fatalf("budget %d: placements=%d rejected=%d", minutes, len(plan.Placements), len(plan.Rejected))
		}
	}
}

func TestScheduleEmpty(t *testing.T) {
	t.Parallel()
	plan, err := Schedule(nil, Availability{Minutes: 60})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(plan.Placements) != 0 || len(plan.Rejected) != 0 || len(plan.Conflicts) != 0 {
		t.Fatalf("unexpected plan for empty input: %+v", plan)
	}
}

func TestScheduleRejectsInvalidTask(t *testing.T) {
	t.Parallel()
	_, err := Schedule([]care.Task{free("bad", 0, 3)}, Availability{Minutes: 60})
	if !errors.Is(err, care.ErrInvalidTask) {
		t.Fatalf("Schedule() error = %v, want ErrInvalidTask", err)
	}
}

func TestScheduleDeterministic(t *testing.T) {
	t.Parallel()
	fixed := free("fixed", 25, 2)
	fixed.ScheduledTime = clockPtr("09:10")
	tasks := []care.Task{free("a", 20, 3), free("b", 45, 5), fixed, free("c", 15, 3), free("d", 30, 1)}
	first := mustRankSchedule(t, tasks, window(t, "09:00-10:30"))
	for i := 0; i < 10; i++ {
		again := mustRankSchedule(t, tasks, window(t, "09:00-10:30"))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestScheduleUnableToScheduleExplanation(t *testing.T) {
	t.Parallel()
	plan := mustRankSchedule(t, []care.Task{free("Long Task", 240, 1)}, window(t, "9-12"))
	if len(plan.Placements) != 0 {
		t.Fatalf("placements = %d, want 0", len(plan.Placements))
	}
	if !strings.Contains(plan.ExplanationText(), "Unable to schedule Long Task") {
		t.Fatalf("explanation = %q", plan.ExplanationText())
	}
}

func TestPlanByTimeAndSummary(t *testing.T) {
	t.Parallel()
	late := free("Feed Buddy", 10, 1)
	late.ScheduledTime = clockPtr("09:05")
	plan, err := Schedule([]care.Task{late, free("Walk Max", 20, 1)}, window(t, "09:00-10:00"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	byTime := plan.ByTime()
	if byTime[0].Task.ID != "Walk Max" || byTime[1].Task.ID != "Feed Buddy" {
		t.Fatalf("ByTime() order = %s, %s", byTime[0].Task.ID, byTime[1].Task.ID)
	}
	if plan.Placements[0].Task.ID != "Feed Buddy" {
		t.Fatal("ByTime() must not reorder the plan itself")
	}
	if !plan.HasConflicts() {
		t.Fatal("expected a conflict")
	}
	s := plan.ConflictSummary()
	if !strings.Contains(strings.ToLower(s), "conflict") || !strings.Contains(s, "Feed Buddy") || !strings.Contains(s, "Walk Max") {
		t.Fatalf("summary = %q", s)
	}
}
