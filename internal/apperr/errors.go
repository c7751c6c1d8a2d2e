// Package apperr defines the error taxonomy shared across the build pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing file or record.
	ErrNotFound = errors.New("not found")
	// ErrNoFragments reports a discovery pass that found no fragment files.
	ErrNoFragments = errors.New("no fragment files found")
)

// ParseError reports a malformed front-matter block in a fragment:
// delimiters were present but the content between them could not be parsed,
// or the closing delimiter was missing.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BuildError reports a converter run that exited non-zero. Diagnostics
// carries the tool's stderr verbatim.
type BuildError struct {
	Format      string
	Diagnostics string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s build failed: %s", e.Format, e.Diagnostics)
}

// DependencyError reports a required external tool missing from PATH.
type DependencyError struct {
	Tool string
	Hint string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing dependency %q (install: %s)", e.Tool, e.Hint)
}

// ConfigError reports an invalid persisted settings file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
