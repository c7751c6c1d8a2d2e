package history_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/jera/internal/history"
	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/testutil"
)

func syncTestEnv(t *testing.T) (string, storage.Provider, *history.DB) {
	t.Helper()
	root, store := testutil.TestProject(t)
	return root, store, testutil.TestDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSync_RecordsNewFragments(t *testing.T) {
	root, store, db := syncTestEnv(t)
	testutil.WriteFragment(t, root, "01-intro.md", "# Intro")

	if err := history.Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if all["01-intro.md"] == "" {
		t.Error("new fragment not recorded")
	}
}

func TestSync_RemovesDeletedFragments(t *testing.T) {
	root, store, db := syncTestEnv(t)
	path := testutil.WriteFragment(t, root, "01-gone.md", "x")

	if err := history.Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	_ = os.Remove(path)
	if err := history.Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	all, _ := db.AllChecksums()
	if _, ok := all["01-gone.md"]; ok {
		t.Error("deleted fragment still recorded")
	}
}

func TestSync_UpdatesChangedChecksums(t *testing.T) {
	root, store, db := syncTestEnv(t)
	path := testutil.WriteFragment(t, root, "01-intro.md", "before")

	if err := history.Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before, _ := db.AllChecksums()

	if err := os.WriteFile(path, []byte("after"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := history.Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	after, _ := db.AllChecksums()

	if before["01-intro.md"] == after["01-intro.md"] {
		t.Error("checksum not updated after content change")
	}
}

func TestChangedSinceLastSync(t *testing.T) {
	root, store, db := syncTestEnv(t)
	path := testutil.WriteFragment(t, root, "01-intro.md", "before")

	if err := history.Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	changed, err := history.ChangedSinceLastSync(db, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Errorf("freshly synced tree reports changes: %v", changed)
	}

	if err := os.WriteFile(path, []byte("after"), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFragment(t, root, "02-new.md", "new")

	changed, err = history.ChangedSinceLastSync(db, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 2 {
		t.Errorf("changed = %v, want 2 entries", changed)
	}
}
