// Package diagrams renders Mermaid diagram sources through the external
// Mermaid CLI. Each source file becomes one artifact named after its
// stem in a dedicated output subdirectory; fenced mermaid blocks inside
// fragments render as numbered inline artifacts.
package diagrams

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/deps"
	"github.com/starford/jera/internal/models"
)

var inlineBlockRe = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")

// Renderer drives the external diagram renderer.
type Renderer struct {
	outputDir string
	tool      string
	png       bool
	logger    *slog.Logger
}

// New creates a Renderer writing artifacts into outputDir. With png set,
// every diagram additionally renders to a PNG alongside the SVG.
func New(outputDir string, png bool, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		outputDir: outputDir,
		tool:      deps.ToolDiagrams,
		png:       png,
		logger:    logger,
	}
}

// targets lists the artifact paths one source renders to: always the
// SVG, plus a PNG when requested.
func (r *Renderer) targets(source string) []string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	out := []string{filepath.Join(r.outputDir, stem+".svg")}
	if r.png {
		out = append(out, filepath.Join(r.outputDir, stem+".png"))
	}
	return out
}

// RenderAll renders every source file independently. Individual failures
// do not stop the pass; they are joined into the returned error.
func (r *Renderer) RenderAll(ctx context.Context, sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("diagrams: create output dir: %w", err)
	}

	var errs []error
	for _, src := range sources {
		out, err := r.Render(ctx, src)
		if err != nil {
			// A missing renderer fails every file the same way; stop early.
			var depErr *apperr.DependencyError
			if errors.As(err, &depErr) {
				return err
			}
			r.logger.Warn("diagrams: render failed",
				slog.String("source", src),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		r.logger.Info("diagrams: rendered",
			slog.String("source", src),
			slog.String("artifact", out))
	}
	return errors.Join(errs...)
}

// RenderInline extracts fenced mermaid blocks from the fragments' bodies
// and renders each as a numbered artifact. Numbering is stable across
// the fragment order so references stay valid between runs.
func (r *Renderer) RenderInline(ctx context.Context, fragments []models.Fragment) error {
	n := 0
	var errs []error
	for _, f := range fragments {
		if !f.HasInlineMermaid {
			continue
		}
		for _, m := range inlineBlockRe.FindAllStringSubmatch(f.Body, -1) {
			if n == 0 {
				if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
					return fmt.Errorf("diagrams: create output dir: %w", err)
				}
			}
			src := filepath.Join(r.outputDir, fmt.Sprintf("inline-diagram-%d.mmd", n))
			n++
			if err := os.WriteFile(src, []byte(m[1]), 0o644); err != nil {
				errs = append(errs, fmt.Errorf("diagrams: write inline source: %w", err))
				continue
			}

			out, err := r.Render(ctx, src)
			os.Remove(src)
			if err != nil {
				var depErr *apperr.DependencyError
				if errors.As(err, &depErr) {
					return err
				}
				r.logger.Warn("diagrams: inline render failed",
					slog.String("fragment", f.Path),
					slog.String("error", err.Error()))
				errs = append(errs, err)
				continue
			}
			r.logger.Info("diagrams: inline rendered",
				slog.String("fragment", f.Path),
				slog.String("artifact", out))
		}
	}
	return errors.Join(errs...)
}

// Render renders one diagram source, one converter run per target. The
// returned path is the primary (SVG) artifact.
func (r *Renderer) Render(ctx context.Context, source string) (string, error) {
	targets := r.targets(source)
	for _, out := range targets {
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, r.tool, "--input", source, "--output", out)
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return "", &apperr.DependencyError{Tool: r.tool, Hint: deps.InstallHint(r.tool)}
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return "", &apperr.BuildError{Format: "diagram", Diagnostics: strings.TrimSpace(stderr.String())}
			}
			return "", fmt.Errorf("diagrams: run %s: %w", r.tool, err)
		}
	}
	return targets[0], nil
}
