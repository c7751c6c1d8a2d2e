package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Build formats accepted by configuration and the CLI.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatHTML = "html"
	FormatAll  = "all"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Project ProjectConfig     `yaml:"project"`
	Build   BuildConfig       `yaml:"build"`
	Preview PreviewConfig     `yaml:"preview"`
	History HistoryConfig     `yaml:"history"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	return c.Preview.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ProjectConfig holds the user-supplied project settings. It is loaded
// once per invocation and read-only for every build cycle after that.
type ProjectConfig struct {
	Name         string   `yaml:"name"`
	Root         string   `yaml:"root"`
	OutputDir    string   `yaml:"output_dir"`
	TemplatesDir string   `yaml:"templates_dir"`
	ImagesDir    string   `yaml:"images_dir"`
	ExcludeFiles []string `yaml:"exclude_files"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.OutputDir, validation.Required),
	)
}

// resolved anchors dir to the project root when relative.
func (c *ProjectConfig) resolved(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Root, dir)
}

// OutputPath returns the output directory anchored to the project root.
func (c *ProjectConfig) OutputPath() string { return c.resolved(c.OutputDir) }

// TemplatesPath returns the templates directory anchored to the project root.
func (c *ProjectConfig) TemplatesPath() string { return c.resolved(c.TemplatesDir) }

// ImagesPath returns the images directory anchored to the project root.
func (c *ProjectConfig) ImagesPath() string { return c.resolved(c.ImagesDir) }

// ArtifactPath returns the artifact path for one format extension.
func (c *ProjectConfig) ArtifactPath(ext string) string {
	return filepath.Join(c.OutputPath(), c.Name+ext)
}

// BuildConfig holds build defaults.
type BuildConfig struct {
	DefaultFormat    string `yaml:"default_format"`
	CleanBeforeBuild bool   `yaml:"clean_before_build"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultFormat,
			validation.Required,
			validation.In(FormatPDF, FormatDOCX, FormatHTML, FormatAll)),
	)
}

// PreviewConfig holds the watch-session HTTP server configuration.
type PreviewConfig struct {
	Port int `yaml:"port"`
}

// Address returns the preview server address.
func (c *PreviewConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// HistoryConfig holds the build-log database location.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// ResolvedPath anchors the database path to the project root when relative.
func (c *HistoryConfig) ResolvedPath(project *ProjectConfig) string {
	return project.resolved(c.Path)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Project: ProjectConfig{
			Name:         "document",
			Root:         ".",
			OutputDir:    "output",
			TemplatesDir: "templates",
			ImagesDir:    "images",
			ExcludeFiles: []string{"README.md"},
		},
		Build: BuildConfig{
			DefaultFormat: FormatPDF,
		},
		Preview: PreviewConfig{
			Port: 8080,
		},
		History: HistoryConfig{
			Path: ".jera.db",
		},
	}
}
