package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pawpal/internal/services/planning"
	"pawpal/internal/storage"
	logx "pawpal/pkg/logx"
)

const ownerJSON = `{
  "id": "maria",
  "name": "Maria",
  "availability": "09:00-10:00",
  "pets": [{"id": "rex", "name": "Rex"}],
  "tasks": [
    {"id": "walk", "pet_id": "rex", "name": "Walk", "duration_minutes": 30, "priority": 5, "recurrence": "daily"},
    {"id": "meds", "pet_id": "rex", "name": "Meds", "duration_minutes": 5, "priority": 1, "is_medication": true}
  ]
}`

func newCLI(t *testing.T) *planning.Service {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	now := time.Date(2026, 2, 16, 7, 0, 0, 0, time.UTC)
	p, err := planning.New(planning.Config{Location: time.UTC}, planning.Deps{Store: st, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("planning.New: %v", err)
	}
	return p
}

func TestRunWorkflow(t *testing.T) {
	t.Parallel()

	p := newCLI(t)
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "maria.json")
	if err := os.WriteFile(file, []byte(ownerJSON), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"import", file}, "imported owner maria with 1 pets and 2 tasks"},
		{[]string{"plan", "maria"}, "09:00-09:05  Meds (Rex) [medication priority]"},
		{[]string{"complete", "maria", "walk"}, "Walk marked complete. Next due: 2026-02-17"},
		{[]string{"tasks", "maria", "completed"}, "Walk (Rex)"},
		{[]string{"plan", "maria", "tomorrow"}, "Plan for Maria, 2026-02-17"},
	}
	for _, s := range steps {
		var out bytes.Buffer
		if err := run(ctx, p, s.args, &out); err != nil {
			t.Fatalf("run(%v): %v", s.args, err)
		}
		if !strings.Contains(out.String(), s.want) {
			t.Fatalf("run(%v) output:\n%s\nwant substring %q", s.args, out.String(), s.want)
		}
	}
}

func TestRunUsageErrors(t *testing.T) {
	t.Parallel()

	p := newCLI(t)
	for _, args := range [][]string{
		{"plan"},
		{"complete", "maria"},
		{"tasks"},
		{"import"},
		{"bogus"},
	} {
		if err := run(context.Background(), p, args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Fatalf("run(%v) err=%v want errUsage", args, err)
		}
	}
}
