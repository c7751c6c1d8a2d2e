package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BuildRecord represents one completed build cycle.
type BuildRecord struct {
	ID            int64
	Format        string
	Artifact      string
	Success       bool
	Diagnostics   string
	FragmentCount int
	Duration      time.Duration
	CreatedAt     time.Time
}

// RecordBuild appends a build cycle to the log.
func (db *DB) RecordBuild(rec BuildRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO builds (format, artifact, success, diagnostics, fragment_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Format, rec.Artifact, rec.Success, rec.Diagnostics, rec.FragmentCount, rec.Duration.Milliseconds(), created)
	if err != nil {
		return fmt.Errorf("history: record build: %w", err)
	}
	return nil
}

// LastBuild returns the most recent build, optionally filtered by
// format. A nil record means the log is empty.
func (db *DB) LastBuild(format string) (*BuildRecord, error) {
	query := `SELECT id, format, artifact, success, diagnostics, fragment_count, duration_ms, created_at
		FROM builds`
	var args []interface{}
	if format != "" {
		query += ` WHERE format = ?`
		args = append(args, format)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	rec, err := scanBuild(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: last build: %w", err)
	}
	return rec, nil
}

// RecentBuilds returns up to limit builds, newest first.
func (db *DB) RecentBuilds(limit int) ([]BuildRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, format, artifact, success, diagnostics, fragment_count, duration_ms, created_at
		FROM builds ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent builds: %w", err)
	}
	defer rows.Close()

	var out []BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuild(row rowScanner) (*BuildRecord, error) {
	var rec BuildRecord
	var durationMS int64
	if err := row.Scan(&rec.ID, &rec.Format, &rec.Artifact, &rec.Success,
		&rec.Diagnostics, &rec.FragmentCount, &durationMS, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}

// UpsertFragment stores the checksum seen for a fragment path.
func (db *DB) UpsertFragment(path, checksum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO fragments (path, checksum, indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			indexed_at = excluded.indexed_at
	`, path, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("history: upsert fragment: %w", err)
	}
	return nil
}

// DeleteFragment removes a fragment entry.
func (db *DB) DeleteFragment(path string) error {
	_, err := db.conn.Exec(`DELETE FROM fragments WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("history: delete fragment: %w", err)
	}
	return nil
}

// AllChecksums returns every recorded fragment path with its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM fragments`)
	if err != nil {
		return nil, fmt.Errorf("history: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
