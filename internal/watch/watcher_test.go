package watch

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/internal/object"
)

func TestPlanIDFromPath(t *testing.T) {
	id := object.Derive([]byte("plan"))

	got, ok := planIDFromPath("/data/plans/" + string(id) + ".yaml")
	if !ok {
		t.Fatal("expected a plan id")
	}
	if got != id {
		t.Errorf("got %s, want %s", got, id)
	}

	for _, path := range []string{
		"/data/plans/" + string(id) + ".yaml.tmp-1234",
		"/data/plans/notes.yaml",
		"/data/plans/" + string(id[:12]) + ".yaml",
		"/data/plans/" + string(id),
	} {
		if _, ok := planIDFromPath(path); ok {
			t.Errorf("expected %s to be ignored", path)
		}
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.yaml")
	content := []byte("ops: []")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	got, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}
	if want := sha256.Sum256(content); got != want {
		t.Errorf("hash mismatch: got %x, want %x", got, want)
	}

	if _, err := hashFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestWatcherPublishesOnChange(t *testing.T) {
	dir := t.TempDir()
	bus := event.New()
	subID, ch := bus.Subscribe(8)
	defer bus.Unsubscribe(subID)

	planID := object.Derive([]byte("plan"))
	path := filepath.Join(dir, string(planID)+".yaml")
	if err := os.WriteFile(path, []byte("ops: []"), 0644); err != nil {
		t.Fatalf("failed to write plan log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(dir, bus)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to prime; pre-existing content must not fire.
	time.Sleep(200 * time.Millisecond)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for primed file: %+v", ev)
	default:
	}

	if err := os.WriteFile(path, []byte("ops:\n  - id: x\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite plan log: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != event.TypePlanUpdated {
			t.Errorf("got event type %s, want %s", ev.Type, event.TypePlanUpdated)
		}
		if ev.PlanID != planID {
			t.Errorf("got plan %s, want %s", ev.PlanID, planID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	cancel()
	if err := <-done; err != nil && !strings.Contains(err.Error(), "context canceled") {
		t.Errorf("unexpected run error: %v", err)
	}
}
