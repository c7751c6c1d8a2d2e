// Package watch implements the filesystem-triggered rebuild loop: a
// dedicated fsnotify producer feeds qualifying change events through a
// bounded channel to a single consumer that runs build cycles strictly
// one at a time.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// State of the scheduler.
type State int32

const (
	StateIdle State = iota
	StateWatching
	StateBuilding
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateBuilding:
		return "building"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrWatcherClosed reports that the filesystem event source broke; the
// watch session cannot continue.
var ErrWatcherClosed = errors.New("watch: event source closed")

// triggerExts are the only extensions whose changes schedule a rebuild.
var triggerExts = map[string]struct{}{
	".md":   {},
	".yaml": {},
	".yml":  {},
}

// BuildFunc runs one full build cycle (discovery → resolve → orchestrate).
type BuildFunc func(ctx context.Context) error

// Scheduler owns the watch loop for one session.
type Scheduler struct {
	root   string
	build  BuildFunc
	logger *slog.Logger
	state  atomic.Int32
}

// New creates a Scheduler over the given project root.
func New(root string, build BuildFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{root: root, build: build, logger: logger}
	s.state.Store(int32(StateIdle))
	return s
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run executes one unconditional initial build cycle, then rebuilds on
// every qualifying filesystem change until ctx is cancelled or the
// event source breaks. A failed cycle is reported and the loop keeps
// watching; it never terminates the session.
func (s *Scheduler) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, s.root); err != nil {
		return err
	}

	events := make(chan string, 128)
	go s.produce(ctx, w, events)

	s.logger.Info("watch: started", slog.String("root", s.root))

	// Initial cycle runs even with no prior event.
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(StateStopped))
			s.logger.Info("watch: stopped")
			return nil

		case path, ok := <-events:
			if !ok {
				s.state.Store(int32(StateStopped))
				return ErrWatcherClosed
			}
			s.logger.Info("watch: change detected", slog.String("path", path))
			s.runCycle(ctx)

			// Coalesce: changes that queued up during the cycle carry no
			// more information than one, so drain them and rebuild at
			// most once more per drain.
			for s.drain(events) {
				s.runCycle(ctx)
			}
		}
	}
}

// runCycle executes exactly one build cycle. The cycle always runs to
// completion: cancellation is only observed between cycles.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.state.Store(int32(StateBuilding))
	defer s.state.Store(int32(StateWatching))

	if err := s.build(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("watch: build cycle failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("watch: rebuild complete")
}

// drain consumes every queued event without blocking and reports
// whether any were present.
func (s *Scheduler) drain(events chan string) bool {
	drained := false
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return drained
			}
			drained = true
		default:
			return drained
		}
	}
}

// produce forwards qualifying fsnotify events into the bounded channel
// until ctx is cancelled or the watcher breaks, at which point the
// channel is closed. Directories created at runtime are added to the
// watch list.
func (s *Scheduler) produce(ctx context.Context, w *fsnotify.Watcher, events chan<- string) {
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, ok := triggerExts[filepath.Ext(ev.Name)]; !ok {
				continue
			}

			select {
			case events <- ev.Name:
			default:
				// Channel full: older queued events already guarantee a
				// rebuild that will pick this change up too.
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
