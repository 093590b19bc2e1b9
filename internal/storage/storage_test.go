package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"pawpal/internal/care"
	"pawpal/internal/care/scheduler"
	logx "pawpal/pkg/logx"
)

func sampleOwner() *care.Owner {
	at := care.MustClock("08:00")
	due := care.NewDate(2026, time.March, 2)
	return &care.Owner{
		ID:           "o1",
		Name:         "Jordan",
		Availability: care.Window{Start: care.MustClock("07:00"), End: care.MustClock("19:00")},
		Pets:         []care.Pet{{ID: "rex", Name: "Rex", Species: "dog", Age: 4}},
		Tasks: []care.Task{
			{
				ID: "med", PetID: "rex", Name: "Pill", Category: "health", DurationMinutes: 5,
				Priority: care.PriorityHigh, IsMedication: true, ScheduledTime: &at,
				Status: care.StatusCompleted, Recurrence: care.Daily(), NextDue: &due,
			},
			{
				ID: "walk", PetID: "rex", Name: "Walk", DurationMinutes: 30, Priority: care.PriorityMedium,
				TimePreference: care.PreferMorning, Status: care.StatusPending,
				Recurrence: care.Weekly(time.Monday, time.Thursday),
			},
			{
				ID: "bath", PetID: "rex", Name: "Bath", DurationMinutes: 20, Priority: care.PriorityLow,
				Recurrence: care.Recurrence{Kind: care.RecurNone},
			},
		},
	}
}

type opener func(t *testing.T) Store

func drivers(t *testing.T) map[string]opener {
	t.Helper()
	out := map[string]opener{
		"file": func(t *testing.T) Store {
			return mustOpen(t, Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data")})
		},
		"sqlite": func(t *testing.T) Store {
			return mustOpen(t, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "pawpal.db"), BusyTimeout: time.Second})
		},
	}
	if dsn := os.Getenv("PAWPAL_TEST_POSTGRES_DSN"); dsn != "" {
		out["postgres"] = func(t *testing.T) Store {
			st := mustOpen(t, Config{Driver: "postgres", DSN: dsn})
			ids, _ := st.ListOwners(context.Background())
			for _, id := range ids {
				_ = st.DeleteOwner(context.Background(), id)
			}
			return st
		}
	}
	return out
}

func mustOpen(t *testing.T, cfg Config) Store {
	t.Helper()
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", cfg.Driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOwnerRoundTrip(t *testing.T) {
	for name, open := range drivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			want := sampleOwner()
			if err := st.SaveOwner(ctx, want); err != nil {
				t.Fatalf("SaveOwner: %v", err)
			}
			got, err := st.LoadOwner(ctx, "o1")
			if err != nil {
				t.Fatalf("LoadOwner: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}

			// Saving again replaces the task list.
			want.Tasks = want.Tasks[:1]
			if err := st.SaveOwner(ctx, want); err != nil {
				t.Fatalf("SaveOwner: %v", err)
			}
			got, _ = st.LoadOwner(ctx, "o1")
			if len(got.Tasks) != 1 {
				t.Fatalf("tasks after replace = %d, want 1", len(got.Tasks))
			}

			ids, err := st.ListOwners(ctx)
			if err != nil || !reflect.DeepEqual(ids, []string{"o1"}) {
				t.Fatalf("ListOwners = %v, %v", ids, err)
			}
		})
	}
}

func TestOwnerNotFoundAndDelete(t *testing.T) {
	for name, open := range drivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			if _, err := st.LoadOwner(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("LoadOwner(ghost) = %v, want ErrNotFound", err)
			}
			if err := st.DeleteOwner(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("DeleteOwner(ghost) = %v, want ErrNotFound", err)
			}
			if err := st.SaveOwner(ctx, sampleOwner()); err != nil {
				t.Fatalf("SaveOwner: %v", err)
			}
			if err := st.DeleteOwner(ctx, "o1"); err != nil {
				t.Fatalf("DeleteOwner: %v", err)
			}
			if _, err := st.LoadOwner(ctx, "o1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("LoadOwner after delete = %v", err)
			}
		})
	}
}

func TestSaveOwnerRejectsInvalid(t *testing.T) {
	for name, open := range drivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			o := sampleOwner()
			o.Tasks[1].DurationMinutes = 0
			err := open(t).SaveOwner(context.Background(), o)
			if !errors.Is(err, care.ErrInvalidTask) {
				t.Fatalf("SaveOwner(invalid) = %v, want ErrInvalidTask", err)
			}
		})
	}
}

func TestPlanRoundTrip(t *testing.T) {
	o := sampleOwner()
	plan, err := scheduler.Schedule(o.Tasks, scheduler.FromWindow(o.Availability))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	day := care.NewDate(2026, time.March, 2)
	rec := FromPlan(o.ID, day, o.Availability, plan, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))

	for name, open := range drivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			if _, err := st.LoadPlan(ctx, o.ID, day); !errors.Is(err, ErrNotFound) {
				t.Fatalf("LoadPlan before save = %v", err)
			}
			if err := st.SavePlan(ctx, rec); err != nil {
				t.Fatalf("SavePlan: %v", err)
			}
			got, err := st.LoadPlan(ctx, o.ID, day)
			if err != nil {
				t.Fatalf("LoadPlan: %v", err)
			}
			if !reflect.DeepEqual(*got, rec) {
				t.Fatalf("plan mismatch:\n got %+v\nwant %+v", *got, rec)
			}
		})
	}
}

func TestAuditAndDedup(t *testing.T) {
	for name, open := range drivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			if err := st.AppendAudit(ctx, AuditEntry{OwnerID: "o1", Actor: "cli", Action: "plan.generate", OK: true}); err != nil {
				t.Fatalf("AppendAudit: %v", err)
			}
			until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
			if err := st.PutDedup(ctx, "daily:o1:2026-03-02", until); err != nil {
				t.Fatalf("PutDedup: %v", err)
			}
			got, ok, err := st.GetDedup(ctx, "daily:o1:2026-03-02")
			if err != nil || !ok || !got.Equal(until) {
				t.Fatalf("GetDedup = %v, %v, %v", got, ok, err)
			}
			if _, ok, _ := st.GetDedup(ctx, "missing"); ok {
				t.Fatal("unexpected dedup hit")
			}
		})
	}
}

func TestFileStoreDedupSurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "data")
	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.PutDedup(context.Background(), "k", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	_ = st.Close()

	st = mustOpen(t, Config{Driver: "file", Path: dir})
	if got, ok, _ := st.GetDedup(context.Background(), "k"); !ok || !got.Equal(until) {
		t.Fatalf("GetDedup after reopen = %v, %v", got, ok)
	}
}

func TestFileStoreRejectsUnsafeIDs(t *testing.T) {
	t.Parallel()
	st := mustOpen(t, Config{Driver: "file", Path: t.TempDir()})
	for _, id := range []string{"../x", "a/b", "..", ""} {
		if _, err := st.LoadOwner(context.Background(), id); err == nil || errors.Is(err, ErrNotFound) {
			t.Fatalf("LoadOwner(%q) = %v, want invalid id error", id, err)
		}
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	if st, err := Open(Config{}, logx.Nop()); st != nil || err != nil {
		t.Fatalf("Open(disabled) = %v, %v", st, err)
	}
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRebind(t *testing.T) {
	t.Parallel()
	got := rebind(`SELECT a FROM t WHERE x = ? AND y = ?`)
	if got != `SELECT a FROM t WHERE x = $1 AND y = $2` {
		t.Fatalf("rebind = %q", got)
	}
}
