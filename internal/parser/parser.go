// Package parser extracts front-matter and local dependencies from
// Markdown fragments and merges per-fragment metadata into the single
// document configuration used by a build.
package parser

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
)

// SetupFragmentName is the reserved fragment whose front-matter takes
// full precedence during the merge.
const SetupFragmentName = "00-setup.md"

var (
	imageRe = regexp.MustCompile(`!\[.*?\]\(([^)]+)\)`)
	linkRe  = regexp.MustCompile(`\[.*?\]\(([^)]+)\)`)
)

// ParseFile reads and parses a fragment from disk.
func ParseFile(path string) (models.Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Fragment{}, fmt.Errorf("parser: read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return models.Fragment{}, fmt.Errorf("parser: stat %s: %w", path, err)
	}

	meta, body, err := SplitFrontmatter(data)
	if err != nil {
		return models.Fragment{}, &apperr.ParseError{Path: path, Err: err}
	}

	return models.Fragment{
		Path:             path,
		Metadata:         meta,
		Body:             body,
		Dependencies:     extractDependencies(body, filepath.Dir(path)),
		HasInlineMermaid: strings.Contains(body, "```mermaid"),
		LastModified:     info.ModTime(),
	}, nil
}

// SplitFrontmatter separates a YAML front-matter block (between leading
// --- delimiter lines) from the body. A file that does not open with a
// delimiter has empty metadata and its full content as body. An opening
// delimiter without a matching closer, or unparsable YAML between the
// delimiters, is an error.
func SplitFrontmatter(data []byte) (models.Metadata, string, error) {
	const delim = "---\n"

	content := string(data)
	if !strings.HasPrefix(content, delim) {
		return models.Metadata{}, content, nil
	}

	rest := content[len(delim):]
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		return models.Metadata{}, "", errors.New("front-matter: missing closing delimiter")
	}

	yamlBlock := rest[:idx]
	body := rest[idx+len("\n---\n"):]

	var meta models.Metadata
	if err := yaml.Unmarshal([]byte(yamlBlock), &meta); err != nil {
		return models.Metadata{}, "", fmt.Errorf("front-matter: %w", err)
	}

	return meta, body, nil
}

// extractDependencies scans the body for image and link references that
// resolve to existing local files. Link targets must point at another
// fragment file. The list is informational; a missing dependency never
// blocks a build.
func extractDependencies(body, baseDir string) []string {
	var deps []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		deps = append(deps, p)
	}

	for _, m := range imageRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if isRemote(target) {
			continue
		}
		p := filepath.Join(baseDir, target)
		if _, err := os.Stat(p); err == nil {
			add(p)
		}
	}

	for _, m := range linkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if isRemote(target) || !strings.HasSuffix(target, ".md") {
			continue
		}
		p := filepath.Join(baseDir, target)
		if _, err := os.Stat(p); err == nil {
			add(p)
		}
	}

	return deps
}

func isRemote(target string) bool {
	return strings.HasPrefix(target, "http") || strings.HasPrefix(target, "mailto:")
}

// Merge resolves the document configuration for one build cycle.
// Precedence: the reserved setup fragment seeds the result in entirety;
// every key still unset is then filled first-wins in fragment order,
// independently per key.
func Merge(fragments []models.Fragment) models.Metadata {
	var merged models.Metadata

	for _, f := range fragments {
		if f.Name() == SetupFragmentName {
			merged = f.Metadata
			// The fragment's own Extra map must stay untouched when
			// later fragments contribute keys.
			merged.Extra = maps.Clone(f.Metadata.Extra)
			break
		}
	}

	for _, f := range fragments {
		fillMissing(&merged, f.Metadata)
	}

	return merged
}

// fillMissing copies each source key into target only where target has
// no value yet. The per-key rule lets different fragments contribute
// different individual keys.
func fillMissing(target *models.Metadata, source models.Metadata) {
	if target.Title == "" {
		target.Title = source.Title
	}
	if target.Author == nil {
		target.Author = source.Author
	}
	if target.Date == "" {
		target.Date = source.Date
	}
	if target.Subtitle == "" {
		target.Subtitle = source.Subtitle
	}
	if target.Lang == "" {
		target.Lang = source.Lang
	}
	if target.BabelLang == "" {
		target.BabelLang = source.BabelLang
	}
	if target.TopLevelDivision == "" {
		target.TopLevelDivision = source.TopLevelDivision
	}
	if target.NumberSections == nil {
		target.NumberSections = source.NumberSections
	}
	if target.SecNumDepth == nil {
		target.SecNumDepth = source.SecNumDepth
	}
	if target.TOC == nil {
		target.TOC = source.TOC
	}
	if target.TOCDepth == nil {
		target.TOCDepth = source.TOCDepth
	}
	if target.ListOfFigures == nil {
		target.ListOfFigures = source.ListOfFigures
	}
	if target.ListOfTables == nil {
		target.ListOfTables = source.ListOfTables
	}
	if target.DocumentClass == "" {
		target.DocumentClass = source.DocumentClass
	}
	if target.ClassOption == nil {
		target.ClassOption = source.ClassOption
	}
	if target.Geometry == nil {
		target.Geometry = source.Geometry
	}
	if target.FontSize == "" {
		target.FontSize = source.FontSize
	}
	if target.MainFont == "" {
		target.MainFont = source.MainFont
	}
	if target.SansFont == "" {
		target.SansFont = source.SansFont
	}
	if target.MonoFont == "" {
		target.MonoFont = source.MonoFont
	}
	if target.Bibliography == nil {
		target.Bibliography = source.Bibliography
	}
	if target.CSL == "" {
		target.CSL = source.CSL
	}
	if target.LinkCitations == nil {
		target.LinkCitations = source.LinkCitations
	}
	if target.ColorLinks == nil {
		target.ColorLinks = source.ColorLinks
	}
	if target.LinkColor == "" {
		target.LinkColor = source.LinkColor
	}
	if target.URLColor == "" {
		target.URLColor = source.URLColor
	}
	if target.CiteColor == "" {
		target.CiteColor = source.CiteColor
	}
	if target.Book == nil {
		target.Book = source.Book
	}

	for k, v := range source.Extra {
		if target.Extra == nil {
			target.Extra = make(map[string]interface{})
		}
		if _, ok := target.Extra[k]; !ok {
			target.Extra[k] = v
		}
	}
}
