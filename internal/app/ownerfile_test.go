package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pawpal/internal/care"
)

const ownerYAML = `
id: maria
name: Maria
availability: "08:00-10:00"
pets:
  - id: rex
    name: Rex
    species: dog
tasks:
  - pet_id: rex
    name: Morning walk
    duration_minutes: 30
    priority: 5
    time_preference: morning
    recurrence: daily
  - id: pill
    pet_id: rex
    name: Heart pill
    duration_minutes: 5
    priority: 2
    is_medication: true
    scheduled_time: "08:00"
    recurrence: "weekly:mon,thu"
`

func TestLoadOwnerFileYAML(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "maria.yaml")
	if err := os.WriteFile(p, []byte(ownerYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o, err := LoadOwnerFile(p)
	if err != nil {
		t.Fatalf("LoadOwnerFile: %v", err)
	}
	if o.ID != "maria" || o.Availability.String() != "08:00-10:00" || len(o.Tasks) != 2 {
		t.Fatalf("owner=%+v", o)
	}
	if o.Tasks[0].ID == "" {
		t.Fatalf("missing generated id")
	}
	pill := o.Tasks[1]
	if at, ok := pill.Fixed(); !ok || at != care.At(8, 0) || !pill.IsMedication || pill.Recurrence.Kind != care.RecurWeekly {
		t.Fatalf("pill=%+v", pill)
	}
}

func TestLoadOwnerFilePriorityAliases(t *testing.T) {
	t.Parallel()

	body := "id: o\ntasks:\n  - id: a\n    name: A\n    duration_minutes: 5\n    priority: high\n  - id: b\n    name: B\n    duration_minutes: 5\n    priority: \"2\"\n"
	p := filepath.Join(t.TempDir(), "alias.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o, err := LoadOwnerFile(p)
	if err != nil {
		t.Fatalf("LoadOwnerFile: %v", err)
	}
	if o.Tasks[0].Priority != care.PriorityHigh || o.Tasks[1].Priority != 2 {
		t.Fatalf("priorities = %d, %d", o.Tasks[0].Priority, o.Tasks[1].Priority)
	}
}

func TestLoadOwnerFileInvalidTaskValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"unknown_prio.json", `{"id":"o","tasks":[{"id":"a","name":"A","duration_minutes":5,"priority":"urgent"}]}`},
		{"unknown_prio.yaml", "id: o\ntasks:\n  - id: a\n    name: A\n    duration_minutes: 5\n    priority: urgent\n"},
		{"range_prio.json", `{"id":"o","tasks":[{"id":"a","name":"A","duration_minutes":5,"priority":9}]}`},
		{"zero_duration.json", `{"id":"o","tasks":[{"id":"a","name":"A","duration_minutes":0,"priority":1}]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := filepath.Join(t.TempDir(), tt.name)
			if err := os.WriteFile(p, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadOwnerFile(p)
			var ite *care.InvalidTaskError
			if !errors.As(err, &ite) || !errors.Is(err, care.ErrInvalidTask) {
				t.Fatalf("err = %v, want *care.InvalidTaskError", err)
			}
		})
	}
}

func TestLoadOwnerFileRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"unknown.json", `{"id":"o","colour":"blue"}`},
		{"badprio.json", `{"id":"o","tasks":[{"id":"a","name":"A","duration_minutes":5,"priority":9}]}`},
		{"dup.json", `{"id":"o","tasks":[{"id":"a","name":"A","duration_minutes":5,"priority":1},{"id":"a","name":"B","duration_minutes":5,"priority":1}]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := filepath.Join(t.TempDir(), tt.name)
			if err := os.WriteFile(p, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadOwnerFile(p); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := LoadOwnerFile(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want ErrNotExist", err)
	}
}
