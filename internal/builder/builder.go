// Package builder assembles converter invocations from merged fragment
// metadata and runs the external converter to produce one artifact per
// build. Rendering itself is entirely the converter's job.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/deps"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/parser"
)

// DefaultConverter is the external document converter binary.
const DefaultConverter = "pandoc"

// babelLangs maps the primary subtag of a language code to the locale
// family value the converter's LaTeX path expects.
var babelLangs = map[string]string{
	"de": "ngerman",
	"fr": "french",
	"es": "spanish",
	"it": "italian",
	"pt": "portuguese",
	"nl": "dutch",
	"ru": "russian",
}

const babelFallback = "english"

// Builder drives the external converter for one output format.
type Builder struct {
	format    Format
	tmplsDir  string
	converter string
	logger    *slog.Logger
}

// New creates a Builder for the given format. templatesDir may be empty
// when the project has no templates.
func New(format Format, templatesDir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		format:    format,
		tmplsDir:  templatesDir,
		converter: DefaultConverter,
		logger:    logger,
	}
}

// Format returns the builder's format descriptor.
func (b *Builder) Format() Format { return b.format }

// Build merges the fragments' metadata, assembles the converter
// invocation, and runs it. On success the artifact path is returned; a
// non-zero converter exit surfaces its stderr inside a BuildError.
func (b *Builder) Build(ctx context.Context, fragments []models.Fragment, outputPath string) (string, error) {
	if len(fragments) == 0 {
		return "", apperr.ErrNoFragments
	}

	merged := parser.Merge(fragments)
	args := b.buildArgs(fragments, merged, outputPath)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("builder: create output dir: %w", err)
	}

	b.logger.Debug("builder: invoking converter",
		slog.String("converter", b.converter),
		slog.String("args", strings.Join(args, " ")))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.converter, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", &apperr.DependencyError{Tool: b.converter, Hint: deps.InstallHint(b.converter)}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &apperr.BuildError{Format: b.format.Name, Diagnostics: strings.TrimSpace(stderr.String())}
		}
		return "", fmt.Errorf("builder: run %s: %w", b.converter, err)
	}

	b.logger.Info("builder: artifact written",
		slog.String("format", b.format.Name),
		slog.String("path", outputPath))
	return outputPath, nil
}

// buildArgs assembles the full deterministic flag list for one invocation.
func (b *Builder) buildArgs(fragments []models.Fragment, meta models.Metadata, outputPath string) []string {
	args := append([]string{}, b.format.BaselineArgs...)

	if tmpl := b.findTemplate(); tmpl != "" {
		args = append(args, b.format.TemplateFlag, tmpl)
		b.logger.Info("builder: using template", slog.String("path", tmpl))
	}

	args = append(args, "--citeproc")

	if b.format.DefaultDivision != "" {
		division := meta.TopLevelDivision
		if division == "" {
			division = b.format.DefaultDivision
		}
		args = append(args, "--top-level-division", division)
	}

	// Section numbering defaults to enabled unless explicitly disabled.
	if meta.NumberSections == nil || *meta.NumberSections {
		args = append(args, "--number-sections")
	}

	if meta.TOC != nil && *meta.TOC {
		args = append(args, "--toc")
		if meta.TOCDepth != nil {
			args = append(args, "--toc-depth", fmt.Sprintf("%d", *meta.TOCDepth))
		}
	}

	for _, bib := range meta.Bibliography {
		args = append(args, "--bibliography", bib)
	}
	if meta.CSL != "" {
		args = append(args, "--csl", meta.CSL)
	}

	args = append(args, metadataArgs(meta)...)

	for _, f := range fragments {
		args = append(args, f.Path)
	}

	args = append(args, "-o", outputPath)
	return args
}

// metadataArgs translates every populated metadata key into the
// converter's --metadata flag syntax.
func metadataArgs(meta models.Metadata) []string {
	var args []string
	add := func(key, value string) {
		args = append(args, "--metadata", key+"="+value)
	}

	if meta.Title != "" {
		add("title", meta.Title)
	} else {
		add("title", "Document")
	}
	if len(meta.Author) > 0 {
		add("author", strings.Join(meta.Author, ", "))
	}
	if meta.Date != "" {
		add("date", meta.Date)
	}
	if meta.Subtitle != "" {
		add("subtitle", meta.Subtitle)
	}

	if meta.Lang != "" {
		add("lang", meta.Lang)
		if meta.BabelLang == "" {
			add("babel-lang", babelLang(meta.Lang))
		}
	}
	if meta.BabelLang != "" {
		add("babel-lang", meta.BabelLang)
	}

	if meta.DocumentClass != "" {
		add("documentclass", meta.DocumentClass)
	}
	for _, opt := range meta.ClassOption {
		add("classoption", opt)
	}
	for _, g := range meta.Geometry {
		add("geometry", g)
	}
	if meta.FontSize != "" {
		add("fontsize", meta.FontSize)
	}
	if meta.MainFont != "" {
		add("mainfont", meta.MainFont)
	}
	if meta.SansFont != "" {
		add("sansfont", meta.SansFont)
	}
	if meta.MonoFont != "" {
		add("monofont", meta.MonoFont)
	}

	if meta.SecNumDepth != nil {
		add("secnumdepth", fmt.Sprintf("%d", *meta.SecNumDepth))
	}
	if meta.ListOfFigures != nil && *meta.ListOfFigures {
		add("lof", "true")
	}
	if meta.ListOfTables != nil && *meta.ListOfTables {
		add("lot", "true")
	}
	if meta.LinkCitations != nil && *meta.LinkCitations {
		add("link-citations", "true")
	}

	if meta.ColorLinks != nil && *meta.ColorLinks {
		add("colorlinks", "true")
	}
	if meta.LinkColor != "" {
		add("linkcolor", meta.LinkColor)
	}
	if meta.URLColor != "" {
		add("urlcolor", meta.URLColor)
	}
	if meta.CiteColor != "" {
		add("citecolor", meta.CiteColor)
	}
	if meta.Book != nil && *meta.Book {
		add("book", "true")
	}

	// Unrecognized keys pass through verbatim, in sorted order so the
	// invocation stays deterministic.
	keys := make([]string, 0, len(meta.Extra))
	for k := range meta.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, fmt.Sprintf("%v", meta.Extra[k]))
	}

	return args
}

// babelLang derives the locale family from the primary subtag of a
// language code, falling back for unrecognized subtags.
func babelLang(lang string) string {
	primary := lang
	if i := strings.Index(lang, "-"); i >= 0 {
		primary = lang[:i]
	}
	if v, ok := babelLangs[primary]; ok {
		return v
	}
	return babelFallback
}

// findTemplate scans the templates dir for a template of the format's
// expected extension, preferring the canonically named one.
func (b *Builder) findTemplate() string {
	if b.tmplsDir == "" {
		return ""
	}
	if b.format.CanonicalTemplate != "" {
		canonical := filepath.Join(b.tmplsDir, b.format.CanonicalTemplate)
		if _, err := os.Stat(canonical); err == nil {
			return canonical
		}
	}
	entries, err := os.ReadDir(b.tmplsDir)
	if err != nil {
		return ""
	}
	for _, ext := range b.format.TemplateExts {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
				return filepath.Join(b.tmplsDir, entry.Name())
			}
		}
	}
	return ""
}
