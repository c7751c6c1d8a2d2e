package history

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "jera-history-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndLastBuild(t *testing.T) {
	db := testDB(t)

	if last, err := db.LastBuild(""); err != nil || last != nil {
		t.Fatalf("empty log: last = %v, err = %v", last, err)
	}

	err := db.RecordBuild(BuildRecord{
		Format:        "pdf",
		Artifact:      "output/doc.pdf",
		Success:       true,
		FragmentCount: 3,
		Duration:      1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordBuild: %v", err)
	}

	last, err := db.LastBuild("")
	if err != nil {
		t.Fatalf("LastBuild: %v", err)
	}
	if last == nil {
		t.Fatal("expected a record")
	}
	if last.Format != "pdf" || last.Artifact != "output/doc.pdf" || !last.Success {
		t.Errorf("record = %+v", last)
	}
	if last.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", last.Duration)
	}
	if last.FragmentCount != 3 {
		t.Errorf("fragment count = %d, want 3", last.FragmentCount)
	}
}

func TestLastBuild_FormatFilter(t *testing.T) {
	db := testDB(t)
	_ = db.RecordBuild(BuildRecord{Format: "pdf", Success: true})
	_ = db.RecordBuild(BuildRecord{Format: "html", Success: false, Diagnostics: "boom"})

	last, err := db.LastBuild("pdf")
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Format != "pdf" || !last.Success {
		t.Errorf("filtered record = %+v", last)
	}

	if last, _ := db.LastBuild("docx"); last != nil {
		t.Errorf("expected nil for unbuilt format, got %+v", last)
	}
}

func TestRecentBuilds_NewestFirst(t *testing.T) {
	db := testDB(t)
	for _, f := range []string{"pdf", "docx", "html"} {
		if err := db.RecordBuild(BuildRecord{Format: f, Success: true}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := db.RecentBuilds(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].Format != "html" || recent[1].Format != "docx" {
		t.Errorf("order = %s, %s, want html, docx", recent[0].Format, recent[1].Format)
	}
}

func TestFragmentChecksums(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertFragment("01-intro.md", "aaa"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertFragment("01-intro.md", "bbb"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertFragment("02-chapter.md", "ccc"); err != nil {
		t.Fatal(err)
	}

	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all["01-intro.md"] != "bbb" {
		t.Errorf("upsert did not overwrite: %q", all["01-intro.md"])
	}

	if err := db.DeleteFragment("01-intro.md"); err != nil {
		t.Fatal(err)
	}
	all, _ = db.AllChecksums()
	if _, ok := all["01-intro.md"]; ok {
		t.Error("delete did not remove entry")
	}
}
