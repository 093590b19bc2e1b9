package query

import (
	"reflect"
	"testing"
	"time"

	"pawpal/internal/care"
)

func at(s string) *care.Clock {
	c := care.MustClock(s)
	return &c
}

func ids(tasks []care.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func sample() []care.Task {
	return []care.Task{
		{ID: "u1", PetID: "rex", DurationMinutes: 10, Priority: 3},
		{ID: "t1", PetID: "rex", DurationMinutes: 10, Priority: 3, ScheduledTime: at("18:00"), Status: care.StatusCompleted},
		{ID: "t2", PetID: "tom", DurationMinutes: 10, Priority: 3, ScheduledTime: at("07:30")},
		{ID: "u2", PetID: "tom", DurationMinutes: 10, Priority: 3, Status: care.StatusInProgress},
		{ID: "t3", PetID: "rex", DurationMinutes: 10, Priority: 3, ScheduledTime: at("07:30")},
		{ID: "t4", PetID: "tom", DurationMinutes: 10, Priority: 3, ScheduledTime: at("12:00")},
	}
}

func TestSortByTime(t *testing.T) {
	t.Parallel()
	got := ids(SortByTime(sample()))
	want := []string{"t2", "t3", "t4", "t1", "u1", "u2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByTime = %v, want %v", got, want)
	}
}

func TestViews(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		got  []care.Task
		want []string
	}{
		{"pet rex", ByPet(sample(), "rex"), []string{"t3", "t1", "u1"}},
		{"pet unknown", ByPet(sample(), "nobody"), []string{}},
		{"pending includes empty status", ByStatus(sample(), care.StatusPending), []string{"t2", "t3", "t4", "u1"}},
		{"completed", ByStatus(sample(), care.StatusCompleted), []string{"t1"}},
		{"range half open", ByTimeRange(sample(), care.MustClock("07:30"), care.MustClock("12:00")), []string{"t2", "t3"}},
		{"range whole day", ByTimeRange(sample(), 0, care.MinutesPerDay), []string{"t2", "t3", "t4", "t1"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ids(tt.got); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterSortCommute(t *testing.T) {
	t.Parallel()
	filters := []func([]care.Task) []care.Task{
		func(ts []care.Task) []care.Task { return ByPet(ts, "tom") },
		func(ts []care.Task) []care.Task { return ByStatus(ts, care.StatusPending) },
		func(ts []care.Task) []care.Task { return ByTimeRange(ts, care.MustClock("07:00"), care.MustClock("13:00")) },
	}
	for i, f := range filters {
		a := SortByTime(f(sample()))
		b := f(SortByTime(sample()))
		if !reflect.DeepEqual(ids(a), ids(b)) {
			t.Fatalf("filter %d: filter-then-sort %v != sort-then-filter %v", i, ids(a), ids(b))
		}
	}
}

func TestViewsDoNotMutate(t *testing.T) {
	t.Parallel()
	in := sample()
	before := ids(in)
	out := SortByTime(in)
	*out[0].ScheduledTime = care.MustClock("23:00")
	if !reflect.DeepEqual(ids(in), before) {
		t.Fatal("input order changed")
	}
	if in[2].ScheduledTime.String() != "07:30" {
		t.Fatal("input task mutated through view")
	}
}

func TestFilterApply(t *testing.T) {
	t.Parallel()
	f := Filter{PetID: "tom", From: at("07:00")}
	if got, want := ids(f.Apply(sample())), []string{"t2", "t4"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}
	if got := len(Filter{}.Apply(sample())); got != 6 {
		t.Fatalf("empty filter kept %d tasks, want 6", got)
	}
}

func TestDueOn(t *testing.T) {
	t.Parallel()
	day := care.NewDate(2026, time.March, 10)
	tomorrow := day.AddDays(1)
	yesterday := day.AddDays(-1)
	tasks := []care.Task{
		{ID: "open", DurationMinutes: 5, Priority: 1},
		{ID: "done-once", DurationMinutes: 5, Priority: 1, Status: care.StatusCompleted},
		{ID: "done-due", DurationMinutes: 5, Priority: 1, Status: care.StatusCompleted, Recurrence: care.Daily(), NextDue: &yesterday},
		{ID: "done-today", DurationMinutes: 5, Priority: 1, Status: care.StatusCompleted, Recurrence: care.Daily(), NextDue: &day},
		{ID: "done-later", DurationMinutes: 5, Priority: 1, Status: care.StatusCompleted, Recurrence: care.Daily(), NextDue: &tomorrow},
		{ID: "open-later", DurationMinutes: 5, Priority: 1, NextDue: &tomorrow},
	}
	got := ids(DueOn(tasks, day))
	want := []string{"open", "done-due", "done-today"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DueOn = %v, want %v", got, want)
	}
}
