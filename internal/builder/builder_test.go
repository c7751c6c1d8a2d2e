package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
)

func pdfBuilder(t *testing.T, tmplsDir string) *Builder {
	t.Helper()
	f, err := Lookup("pdf")
	if err != nil {
		t.Fatal(err)
	}
	return New(f, tmplsDir, nil)
}

func hasFlag(args []string, flag, value string) bool {
	for i, a := range args {
		if a == flag && i+1 < len(args) && args[i+1] == value {
			return true
		}
	}
	return false
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestBuildArgs_Baseline(t *testing.T) {
	b := pdfBuilder(t, "")
	frags := []models.Fragment{{Path: "01-intro.md"}}

	args := b.buildArgs(frags, models.Metadata{}, "out/doc.pdf")

	for _, want := range []string{"--standalone", "--listings", "--citeproc", "--number-sections", "01-intro.md"} {
		if !contains(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if !hasFlag(args, "--pdf-engine", "xelatex") {
		t.Errorf("args missing pdf engine: %v", args)
	}
	if !hasFlag(args, "--top-level-division", "section") {
		t.Errorf("args missing default division: %v", args)
	}
	if !hasFlag(args, "--metadata", "title=Document") {
		t.Errorf("args missing default title: %v", args)
	}
	if !hasFlag(args, "-o", "out/doc.pdf") {
		t.Errorf("args missing output: %v", args)
	}
}

func TestBuildArgs_FragmentOrderPreserved(t *testing.T) {
	b := pdfBuilder(t, "")
	frags := []models.Fragment{
		{Path: "00-setup.md"},
		{Path: "02-chapter.md"},
		{Path: "10-appendix.md"},
	}
	args := b.buildArgs(frags, models.Metadata{}, "out/doc.pdf")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "00-setup.md 02-chapter.md 10-appendix.md") {
		t.Errorf("fragments out of order: %v", args)
	}
}

func TestBuildArgs_NumberSectionsExplicitlyOff(t *testing.T) {
	b := pdfBuilder(t, "")
	off := false
	args := b.buildArgs([]models.Fragment{{Path: "a.md"}}, models.Metadata{NumberSections: &off}, "out/doc.pdf")
	if contains(args, "--number-sections") {
		t.Errorf("explicit false must suppress --number-sections: %v", args)
	}
}

func TestBuildArgs_TOCWithDepth(t *testing.T) {
	b := pdfBuilder(t, "")
	toc := true
	depth := 3
	args := b.buildArgs([]models.Fragment{{Path: "a.md"}}, models.Metadata{TOC: &toc, TOCDepth: &depth}, "out/doc.pdf")
	if !contains(args, "--toc") || !hasFlag(args, "--toc-depth", "3") {
		t.Errorf("toc flags missing: %v", args)
	}
}

func TestBuildArgs_BibliographyAndCSL(t *testing.T) {
	b := pdfBuilder(t, "")
	meta := models.Metadata{
		Bibliography: []string{"refs.bib", "extra.bib"},
		CSL:          "ieee.csl",
	}
	args := b.buildArgs([]models.Fragment{{Path: "a.md"}}, meta, "out/doc.pdf")
	if !hasFlag(args, "--bibliography", "refs.bib") || !hasFlag(args, "--bibliography", "extra.bib") {
		t.Errorf("bibliography flags missing: %v", args)
	}
	if !hasFlag(args, "--csl", "ieee.csl") {
		t.Errorf("csl flag missing: %v", args)
	}
}

func TestMetadataArgs_BabelDerivedFromLang(t *testing.T) {
	args := metadataArgs(models.Metadata{Lang: "de"})
	if !hasFlag(args, "--metadata", "babel-lang=ngerman") {
		t.Errorf("expected derived babel-lang=ngerman: %v", args)
	}
}

func TestMetadataArgs_BabelRegionSubtagStripped(t *testing.T) {
	args := metadataArgs(models.Metadata{Lang: "pt-BR"})
	if !hasFlag(args, "--metadata", "babel-lang=portuguese") {
		t.Errorf("expected babel-lang=portuguese for pt-BR: %v", args)
	}
}

func TestMetadataArgs_BabelUnknownFallsBack(t *testing.T) {
	args := metadataArgs(models.Metadata{Lang: "xx"})
	if !hasFlag(args, "--metadata", "babel-lang=english") {
		t.Errorf("expected fallback babel-lang=english: %v", args)
	}
}

func TestMetadataArgs_ExplicitBabelWins(t *testing.T) {
	args := metadataArgs(models.Metadata{Lang: "de", BabelLang: "austrian"})
	if !hasFlag(args, "--metadata", "babel-lang=austrian") {
		t.Errorf("explicit babel-lang must win: %v", args)
	}
	if hasFlag(args, "--metadata", "babel-lang=ngerman") {
		t.Errorf("derived value must not appear alongside explicit: %v", args)
	}
}

func TestMetadataArgs_AuthorsJoined(t *testing.T) {
	args := metadataArgs(models.Metadata{Author: []string{"Ada", "Grace"}})
	if !hasFlag(args, "--metadata", "author=Ada, Grace") {
		t.Errorf("authors not joined: %v", args)
	}
}

func TestMetadataArgs_ExtraKeysSorted(t *testing.T) {
	args := metadataArgs(models.Metadata{Extra: map[string]interface{}{
		"zeta":  "z",
		"alpha": 1,
	}})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "alpha=1") || !strings.Contains(joined, "zeta=z") {
		t.Fatalf("extra keys missing: %v", args)
	}
	if strings.Index(joined, "alpha=1") > strings.Index(joined, "zeta=z") {
		t.Errorf("extra keys not sorted: %v", args)
	}
}

func TestFindTemplate_PrefersCanonical(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"aaa.latex", "eisvogel.latex"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("t"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	b := pdfBuilder(t, dir)
	if got := b.findTemplate(); filepath.Base(got) != "eisvogel.latex" {
		t.Errorf("template = %q, want eisvogel.latex", got)
	}
}

func TestFindTemplate_FallsBackByExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.tex"), []byte("t"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := pdfBuilder(t, dir)
	if got := b.findTemplate(); filepath.Base(got) != "custom.tex" {
		t.Errorf("template = %q, want custom.tex", got)
	}
}

func TestFindTemplate_NoneAvailable(t *testing.T) {
	b := pdfBuilder(t, t.TempDir())
	if got := b.findTemplate(); got != "" {
		t.Errorf("template = %q, want empty", got)
	}
}

func TestBuild_NoFragments(t *testing.T) {
	b := pdfBuilder(t, "")
	_, err := b.Build(context.Background(), nil, filepath.Join(t.TempDir(), "doc.pdf"))
	if !errors.Is(err, apperr.ErrNoFragments) {
		t.Fatalf("err = %v, want ErrNoFragments", err)
	}
}

func TestBuild_MissingConverter(t *testing.T) {
	b := pdfBuilder(t, "")
	b.converter = "definitely-not-a-real-converter"

	_, err := b.Build(context.Background(), []models.Fragment{{Path: "a.md"}}, filepath.Join(t.TempDir(), "doc.pdf"))
	var depErr *apperr.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("err = %v, want DependencyError", err)
	}
	if depErr.Tool != "definitely-not-a-real-converter" {
		t.Errorf("tool = %q", depErr.Tool)
	}
}

func TestBuild_ConverterFailureSurfacesDiagnostics(t *testing.T) {
	b := pdfBuilder(t, "")
	// "false" accepts any arguments and exits non-zero with no output.
	b.converter = "false"

	_, err := b.Build(context.Background(), []models.Fragment{{Path: "a.md"}}, filepath.Join(t.TempDir(), "doc.pdf"))
	var buildErr *apperr.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("err = %v, want BuildError", err)
	}
	if buildErr.Format != "pdf" {
		t.Errorf("format = %q, want pdf", buildErr.Format)
	}
}

func TestLookup_KnownAndUnknown(t *testing.T) {
	for _, name := range []string{"pdf", "docx", "html"} {
		f, err := Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%q) error: %v", name, err)
		}
		if f.Name != name {
			t.Errorf("Lookup(%q).Name = %q", name, f.Name)
		}
	}
	if _, err := Lookup("epub"); err == nil {
		t.Error("expected error for unknown format")
	}
}
