package builder

import "fmt"

// Format describes one output format: the artifact extension, the
// baseline converter flags, and how templates are resolved. A single
// Builder parameterized by a Format replaces per-format builder types.
type Format struct {
	Name         string
	Extension    string
	BaselineArgs []string
	// TemplateFlag is the converter flag that accepts a template path.
	TemplateFlag string
	// TemplateExts are the template file extensions scanned for, in
	// preference order.
	TemplateExts []string
	// CanonicalTemplate, when present in the templates dir, wins over
	// any other matching template.
	CanonicalTemplate string
	// DefaultDivision is the top-level division used when the merged
	// metadata does not set one. Empty skips the flag.
	DefaultDivision string
}

// The supported output formats.
var (
	PDF = Format{
		Name:              "pdf",
		Extension:         ".pdf",
		BaselineArgs:      []string{"--standalone", "--listings", "--pdf-engine", "xelatex"},
		TemplateFlag:      "--template",
		TemplateExts:      []string{".latex", ".tex"},
		CanonicalTemplate: "eisvogel.latex",
		DefaultDivision:   "section",
	}
	DOCX = Format{
		Name:         "docx",
		Extension:    ".docx",
		BaselineArgs: []string{"--standalone", "--to", "docx"},
		TemplateFlag: "--reference-doc",
		TemplateExts: []string{".docx"},
	}
	HTML = Format{
		Name:         "html",
		Extension:    ".html",
		BaselineArgs: []string{"--standalone", "--to", "html5", "--self-contained"},
		TemplateFlag: "--template",
		TemplateExts: []string{".html"},
	}
)

// Formats lists every supported format in build order.
func Formats() []Format {
	return []Format{PDF, DOCX, HTML}
}

// Lookup resolves a format by name.
func Lookup(name string) (Format, error) {
	for _, f := range Formats() {
		if f.Name == name {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("builder: unknown format %q", name)
}
