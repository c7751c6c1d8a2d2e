// Package scaffold creates the skeleton of a new document project:
// the reserved setup fragment, a first content fragment, the asset
// directories, and a starter configuration file.
package scaffold

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const setupTemplate = `---
title: "%s"
author:
  - "Your Name"
date: "%s"
lang: en
toc: true
numbersections: true
---
`

const introTemplate = `# Introduction

Write your first section here. Each numbered Markdown file in this
directory becomes one section of the final document, assembled in
natural filename order.
`

const configTemplate = `app:
  log_level: info

project:
  name: %q
  root: "."
  output_dir: "output"
  templates_dir: "templates"
  images_dir: "images"
  exclude_files:
    - "README.md"

build:
  default_format: "pdf"

preview:
  port: 8080

history:
  path: ".jera.db"
`

// Project writes the project skeleton under root. Existing files are
// left untouched so re-running init on a live project is safe.
func Project(root, name, configFile string, logger *slog.Logger) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("scaffold: create project root: %w", err)
	}

	for _, dir := range []string{"images", "templates", "output"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return fmt.Errorf("scaffold: create %s: %w", dir, err)
		}
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(root, "00-setup.md"), fmt.Sprintf(setupTemplate, name, time.Now().Format("2006-01-02"))},
		{filepath.Join(root, "01-introduction.md"), introTemplate},
		{filepath.Join(root, configFile), fmt.Sprintf(configTemplate, name)},
	}

	for _, f := range files {
		created, err := writeIfAbsent(f.path, f.content)
		if err != nil {
			return err
		}
		if created {
			logger.Info("Created", slog.String("path", f.path))
		} else {
			logger.Info("Exists, skipping", slog.String("path", f.path))
		}
	}

	return nil
}

func writeIfAbsent(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("scaffold: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("scaffold: write %s: %w", path, err)
	}
	return true, nil
}
