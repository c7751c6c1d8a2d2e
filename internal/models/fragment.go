// Package models defines the domain types for Jera.
package models

import "time"

// Metadata holds the document configuration extracted from fragment
// front-matter. Known keys map to fields; anything else lands in Extra
// and is forwarded to the converter verbatim.
//
// Optional booleans and integers are pointers so "unset" stays
// distinguishable from an explicit false/zero.
type Metadata struct {
	Title    string   `yaml:"title,omitempty"`
	Author   []string `yaml:"author,omitempty"`
	Date     string   `yaml:"date,omitempty"`
	Subtitle string   `yaml:"subtitle,omitempty"`

	Lang      string `yaml:"lang,omitempty"`
	BabelLang string `yaml:"babel_lang,omitempty"`

	TopLevelDivision string `yaml:"top_level_division,omitempty"`
	NumberSections   *bool  `yaml:"numbersections,omitempty"`
	SecNumDepth      *int   `yaml:"secnumdepth,omitempty"`
	TOC              *bool  `yaml:"toc,omitempty"`
	TOCDepth         *int   `yaml:"toc_depth,omitempty"`
	ListOfFigures    *bool  `yaml:"lof,omitempty"`
	ListOfTables     *bool  `yaml:"lot,omitempty"`

	DocumentClass string   `yaml:"documentclass,omitempty"`
	ClassOption   []string `yaml:"classoption,omitempty"`
	Geometry      []string `yaml:"geometry,omitempty"`
	FontSize      string   `yaml:"fontsize,omitempty"`
	MainFont      string   `yaml:"mainfont,omitempty"`
	SansFont      string   `yaml:"sansfont,omitempty"`
	MonoFont      string   `yaml:"monofont,omitempty"`

	Bibliography  []string `yaml:"bibliography,omitempty"`
	CSL           string   `yaml:"csl,omitempty"`
	LinkCitations *bool    `yaml:"link_citations,omitempty"`

	ColorLinks *bool  `yaml:"colorlinks,omitempty"`
	LinkColor  string `yaml:"linkcolor,omitempty"`
	URLColor   string `yaml:"urlcolor,omitempty"`
	CiteColor  string `yaml:"citecolor,omitempty"`
	Book       *bool  `yaml:"book,omitempty"`

	Extra map[string]interface{} `yaml:",inline"`
}

// Fragment represents one discovered source file, parsed and immutable.
type Fragment struct {
	Path             string
	Metadata         Metadata
	Body             string
	Dependencies     []string
	HasInlineMermaid bool
	LastModified     time.Time
}

// Name returns the fragment's base filename.
func (f Fragment) Name() string {
	for i := len(f.Path) - 1; i >= 0; i-- {
		if f.Path[i] == '/' || f.Path[i] == '\\' {
			return f.Path[i+1:]
		}
	}
	return f.Path
}

// DiscoveredFiles is the result of one discovery pass over a project root.
type DiscoveredFiles struct {
	Fragments     []Fragment
	DiagramFiles  []string
	ImageFiles    []string
	TemplateFiles []string
	BibFiles      []string
}

// FragmentPaths returns the ordered fragment paths, ready to be passed
// to the converter as positional inputs.
func (d DiscoveredFiles) FragmentPaths() []string {
	out := make([]string, len(d.Fragments))
	for i, f := range d.Fragments {
		out[i] = f.Path
	}
	return out
}
