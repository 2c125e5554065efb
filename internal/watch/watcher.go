package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/udisondev/gridpath/internal/leveldata"
)

// Watcher reports level files that changed in the watched directories.
// Bursts of writes to one file are collapsed into a single event emitted
// once the file has been quiet for the debounce interval.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	events   chan string
}

// New starts watching dirs. Call Run to deliver events.
func New(debounce time.Duration, dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	return &Watcher{
		fs:       fw,
		debounce: debounce,
		events:   make(chan string, 16),
	}, nil
}

// Events returns changed level file paths. It is closed when Run returns.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run delivers events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fs.Close()

	pending := make(map[string]time.Time)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !leveldata.IsLevelFile(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now().Add(w.debounce)
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("level watcher error", "err", err)

		case <-timer.C:
			now := time.Now()
			var due []string
			var next time.Duration
			for name, at := range pending {
				if wait := at.Sub(now); wait > 0 {
					if next == 0 || wait < next {
						next = wait
					}
					continue
				}
				due = append(due, name)
				delete(pending, name)
			}
			if next > 0 {
				timer.Reset(next)
			}

			sort.Strings(due)
			for _, name := range due {
				select {
				case w.events <- name:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
