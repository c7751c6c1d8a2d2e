// Package discovery enumerates and orders the source files of a project:
// Markdown fragments, diagram sources, images, templates, and
// bibliography files. All walks are anchored to an explicit root path.
package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/parser"
)

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".svg": {}, ".pdf": {}, ".gif": {}, ".webp": {},
}

var bibExts = map[string]struct{}{
	".bib": {}, ".bibtex": {}, ".json": {}, ".yaml": {},
}

var templateExts = map[string]struct{}{
	".latex": {}, ".tex": {}, ".html": {}, ".docx": {},
}

// Options configures a Discovery.
type Options struct {
	// ExcludePatterns are matched against fragment filenames. Each
	// pattern is compiled as a regular expression; a pattern that fails
	// to compile matches literally instead.
	ExcludePatterns []string
	// ImagesDir and TemplatesDir are resolved against the root when relative.
	ImagesDir    string
	TemplatesDir string
}

// Discovery walks a project root and produces the ordered input set for
// one build cycle.
type Discovery struct {
	root     string
	excludes []*regexp.Regexp
	images   string
	tmpls    string
	logger   *slog.Logger
}

// New creates a Discovery for the given project root.
func New(root string, opts Options, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Discovery{
		root:   root,
		images: resolveDir(root, opts.ImagesDir),
		tmpls:  resolveDir(root, opts.TemplatesDir),
		logger: logger,
	}
	for _, pattern := range opts.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Literal fallback for patterns that are not valid regexps.
			re = regexp.MustCompile(regexp.QuoteMeta(pattern))
		}
		d.excludes = append(d.excludes, re)
	}
	return d
}

func resolveDir(root, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// DiscoverAll runs every category walk and returns the combined result.
// Fragments are parsed and sorted in natural filename order; that order
// is the document's final section order.
func (d *Discovery) DiscoverAll() (models.DiscoveredFiles, error) {
	fragments, err := d.discoverFragments()
	if err != nil {
		return models.DiscoveredFiles{}, err
	}
	diagrams, err := d.collect(d.root, 2, func(ext string) bool { return ext == ".mmd" })
	if err != nil {
		return models.DiscoveredFiles{}, err
	}
	images, err := d.collect(d.images, 3, func(ext string) bool {
		_, ok := imageExts[ext]
		return ok
	})
	if err != nil {
		return models.DiscoveredFiles{}, err
	}
	templates, err := d.collect(d.tmpls, 2, func(ext string) bool {
		_, ok := templateExts[ext]
		return ok
	})
	if err != nil {
		return models.DiscoveredFiles{}, err
	}
	bibs, err := d.collect(d.root, 2, func(ext string) bool {
		_, ok := bibExts[ext]
		return ok
	})
	if err != nil {
		return models.DiscoveredFiles{}, err
	}

	d.logger.Info("discovery: complete",
		slog.Int("fragments", len(fragments)),
		slog.Int("diagrams", len(diagrams)),
		slog.Int("images", len(images)))

	return models.DiscoveredFiles{
		Fragments:     fragments,
		DiagramFiles:  diagrams,
		ImageFiles:    images,
		TemplateFiles: templates,
		BibFiles:      bibs,
	}, nil
}

// discoverFragments parses every non-excluded .md file directly under
// the root and sorts the result.
func (d *Discovery) discoverFragments() ([]models.Fragment, error) {
	paths, err := d.collect(d.root, 1, func(ext string) bool { return ext == ".md" })
	if err != nil {
		return nil, err
	}

	var fragments []models.Fragment
	for _, p := range paths {
		if d.excluded(filepath.Base(p)) {
			d.logger.Debug("discovery: excluded", slog.String("path", p))
			continue
		}
		frag, err := parser.ParseFile(p)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
	}

	sortFragments(fragments)
	return fragments, nil
}

// sortFragments orders by natural filename comparison so numeric
// prefixes sort in numeric-visual order (02-chapter before 10-appendix).
// Ties are broken by full path to keep the order total.
func sortFragments(fragments []models.Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		a, b := fragments[i].Name(), fragments[j].Name()
		if a == b {
			return fragments[i].Path < fragments[j].Path
		}
		return natural.Less(a, b)
	})
}

func (d *Discovery) excluded(name string) bool {
	for _, re := range d.excludes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// collect walks dir up to maxDepth levels below it and returns every
// file whose lowercased extension satisfies match, in walk order.
// A missing dir yields an empty list; any other walk error aborts.
func (d *Discovery) collect(dir string, maxDepth int, match func(ext string) bool) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == dir {
				// Category dir does not exist; nothing to collect.
				return filepath.SkipAll
			}
			return walkErr
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}
		if entry.IsDir() {
			if depth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if match(strings.ToLower(filepath.Ext(entry.Name()))) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walk %s: %w", dir, err)
	}
	return out, nil
}
