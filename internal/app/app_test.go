package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pawpal/internal/care"
	"pawpal/internal/storage"
)

func writeConfig(t *testing.T, driver string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"storage": map[string]any{"driver": driver, "path": filepath.Join(dir, "data")},
		"planner": map[string]any{"default_window": "08:00-12:00", "timezone": "UTC"},
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p := filepath.Join(dir, "pawpal.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestNewOneShot(t *testing.T) {
	var logs bytes.Buffer
	a, err := New(writeConfig(t, "file"), Options{LogOut: &logs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	o := &care.Owner{ID: "maria", Tasks: []care.Task{
		{ID: "feed", Name: "Feed", DurationMinutes: 10, Priority: care.PriorityHigh},
	}}
	if err := a.Planner().SaveOwner(ctx, o); err != nil {
		t.Fatalf("SaveOwner: %v", err)
	}
	res, err := a.Planner().Plan(ctx, "maria", care.NewDate(2026, time.February, 16))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Window.String() != "08:00-12:00" || len(res.Plan.Placements) != 1 {
		t.Fatalf("result window=%v placements=%d", res.Window, len(res.Plan.Placements))
	}
	if err := a.Start(ctx); err == nil {
		t.Fatalf("Start should refuse a one-shot app")
	}
}

func TestNewRequiresStorage(t *testing.T) {
	_, err := New(writeConfig(t, "none"), Options{LogOut: &bytes.Buffer{}})
	if !errors.Is(err, storage.ErrDisabled) {
		t.Fatalf("err=%v want storage.ErrDisabled", err)
	}
}

func TestServeWithoutTelegram(t *testing.T) {
	a, err := New(writeConfig(t, "sqlite"), Options{Serve: true, LogOut: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatalf("Done not closed after Stop")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
}
