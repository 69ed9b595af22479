// Package watch observes the plan log directory for changes made by other
// processes, typically a sync agent writing replicated operations, and
// publishes plan events for them.
package watch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/pkg/panicerr"
)

// DebounceInterval is the delay after an fsnotify event before checking the
// checksum, so rapid event bursts from atomic write-then-rename settle first.
const DebounceInterval = 100 * time.Millisecond

type Watcher struct {
	dir string
	bus *event.Bus

	mu     sync.Mutex
	hashes map[string][sha256.Size]byte
	timers map[string]*time.Timer
}

// New watches dir, the directory holding one log file per plan.
func New(dir string, bus *event.Bus) *Watcher {
	return &Watcher{
		dir:    dir,
		bus:    bus,
		hashes: make(map[string][sha256.Size]byte),
		timers: make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is canceled. Events are deduplicated by checksum:
// a filesystem event whose file content is unchanged publishes nothing.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.prime(); err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	slog.InfoContext(ctx, "watching plan logs", "dir", w.dir)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			planID, ok := planIDFromPath(ev.Name)
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule(ctx, ev.Name, planID)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "fsnotify error", "error", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// prime records the current checksum of every plan log so pre-existing
// content does not fire events on startup.
func (w *Watcher) prime() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if _, ok := planIDFromPath(path); !ok {
			continue
		}
		if h, err := hashFile(path); err == nil {
			w.hashes[path] = h
		}
	}
	return nil
}

// schedule resets the per-file debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string, planID object.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	check := panicerr.Safe(func() error {
		w.check(ctx, path, planID)
		return nil
	})
	w.timers[path] = time.AfterFunc(DebounceInterval, func() {
		if err := check(); err != nil {
			slog.ErrorContext(ctx, "watcher check panicked", "error", err)
		}
	})
}

func (w *Watcher) check(ctx context.Context, path string, planID object.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev, existed := w.hashes[path]
	next, err := hashFile(path)
	if err != nil {
		if !existed {
			return
		}
		delete(w.hashes, path)
		slog.InfoContext(ctx, "plan log removed", "plan", planID.Short())
		w.bus.PublishNew(event.TypePlanDeleted, planID)
		return
	}
	if existed && next == prev {
		return
	}
	w.hashes[path] = next
	if existed {
		slog.InfoContext(ctx, "plan log changed", "plan", planID.Short())
		w.bus.PublishNew(event.TypePlanUpdated, planID)
	} else {
		slog.InfoContext(ctx, "plan log created", "plan", planID.Short())
		w.bus.PublishNew(event.TypePlanCreated, planID)
	}
}

// planIDFromPath extracts the plan id from a log file name. Log files are
// named <id>.yaml; anything else, temp files included, is ignored.
func planIDFromPath(path string) (object.ID, bool) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, ".yaml")
	if !ok {
		return "", false
	}
	id, err := object.Parse(name)
	if err != nil || len(id) != object.FullLen {
		return "", false
	}
	return id, true
}

func hashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, err
	}
	var result [sha256.Size]byte
	copy(result[:], h.Sum(nil))
	return result, nil
}
