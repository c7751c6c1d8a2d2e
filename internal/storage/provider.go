// Package storage defines the read-only project tree abstraction used
// by the build history and status reporting. Build cycles never mutate
// fragments, so the interface has no write side.
package storage

import "time"

// FileMeta is a lightweight representation of one fragment file on disk.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for project file access.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to the root).
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
}
