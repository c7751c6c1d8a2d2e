package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestScheduler_InitialBuildRuns(t *testing.T) {
	root := t.TempDir()
	var builds atomic.Int32

	s := New(root, func(ctx context.Context) error {
		builds.Add(1)
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 1
	}, "initial build cycle never ran")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v on cancellation, want nil", err)
	}
	if s.State() != StateStopped {
		t.Errorf("state = %v, want stopped", s.State())
	}
}

func TestScheduler_RebuildsOnFragmentChange(t *testing.T) {
	root := t.TempDir()
	var builds atomic.Int32

	s := New(root, func(ctx context.Context) error {
		builds.Add(1)
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 1
	}, "initial build cycle never ran")

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(root, "01-new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 2
	}, "change to .md file did not trigger a rebuild")
}

func TestScheduler_IgnoresNonTriggerExtensions(t *testing.T) {
	root := t.TempDir()
	var builds atomic.Int32

	s := New(root, func(ctx context.Context) error {
		builds.Add(1)
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 1
	}, "initial build cycle never ran")

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(root, "artifact.pdf"), []byte("pdf"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("txt"), 0o644)

	time.Sleep(500 * time.Millisecond)
	if got := builds.Load(); got != 1 {
		t.Errorf("builds = %d, want 1 (non-trigger extensions must not rebuild)", got)
	}
}

func TestScheduler_FailedBuildKeepsWatching(t *testing.T) {
	root := t.TempDir()
	var builds atomic.Int32

	s := New(root, func(ctx context.Context) error {
		builds.Add(1)
		return errors.New("converter exploded")
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 1
	}, "initial build cycle never ran")

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(root, "01-a.md"), []byte("x"), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 2
	}, "failed cycle must not stop the watch loop")

	select {
	case err := <-done:
		t.Fatalf("Run exited with %v while session should keep watching", err)
	default:
	}
}

func TestScheduler_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	var builds atomic.Int32

	s := New(root, func(ctx context.Context) error {
		builds.Add(1)
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 1
	}, "initial build cycle never ran")

	time.Sleep(100 * time.Millisecond)
	sub := filepath.Join(root, "chapters")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(200 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 2
	}, "change inside new subdirectory did not trigger a rebuild")
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:     "idle",
		StateWatching: "watching",
		StateBuilding: "building",
		StateStopped:  "stopped",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
