package scheduler

import (
	"strings"
	"testing"
	"time"

	"pawpal/internal/care"
)

func TestMarkCompleteRecurring(t *testing.T) {
	t.Parallel()
	task := care.Task{ID: "t1", Name: "Daily Feed", DurationMinutes: 10, Priority: 3, IsMedication: true, Recurrence: care.Daily()}
	msg, err := MarkComplete(&task, care.NewDate(2026, time.February, 15))
	if err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if task.Status != care.StatusCompleted {
		t.Fatalf("status = %s", task.Status)
	}
	if task.NextDue == nil || task.NextDue.String() != "2026-02-16" {
		t.Fatalf("next due = %v, want 2026-02-16", task.NextDue)
	}
	if !strings.Contains(msg, "Next due") {
		t.Fatalf("message = %q", msg)
	}
}

func TestMarkCompleteNonRecurringClearsDueDate(t *testing.T) {
	t.Parallel()
	due := care.NewDate(2026, time.February, 15)
	task := care.Task{ID: "t1", Name: "Vet visit", DurationMinutes: 60, Priority: 5, NextDue: &due}
	if _, err := MarkComplete(&task, care.NewDate(2026, time.February, 15)); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if task.Status != care.StatusCompleted || task.NextDue != nil {
		t.Fatalf("task = %+v", task)
	}
}

func TestMarkCompleteTwiceIsNoop(t *testing.T) {
	t.Parallel()
	task := care.Task{ID: "t1", Name: "Walk", DurationMinutes: 30, Priority: 3, Recurrence: care.Weekly(time.Monday)}
	if _, err := MarkComplete(&task, care.NewDate(2026, time.February, 16)); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	first := *task.NextDue
	if _, err := MarkComplete(&task, care.NewDate(2026, time.February, 23)); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if *task.NextDue != first {
		t.Fatalf("next due moved from %s to %s without a status transition", first, task.NextDue)
	}
}

func TestMarkCompleteInvalid(t *testing.T) {
	t.Parallel()
	task := care.Task{ID: "t1", DurationMinutes: 0, Priority: 3}
	if _, err := MarkComplete(&task, care.NewDate(2026, time.February, 15)); err == nil {
		t.Fatal("expected error for invalid task")
	}
	if task.Status == care.StatusCompleted {
		t.Fatal("invalid task must not be mutated")
	}
}
