// Package deps checks the availability of the external tools the build
// pipeline delegates to.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/starford/jera/internal/apperr"
)

// Tool names the pipeline shells out to.
const (
	ToolConverter = "pandoc"
	ToolEngine    = "xelatex"
	ToolDiagrams  = "mmdc"
)

// Status describes one external tool.
type Status struct {
	Name      string
	Available bool
	Version   string
	Required  bool
	Hint      string
}

// CheckAll probes every known external tool.
func CheckAll(ctx context.Context) []Status {
	return []Status{
		check(ctx, ToolConverter, true),
		check(ctx, ToolEngine, true),
		check(ctx, ToolDiagrams, false),
	}
}

// ValidateForBuild returns a DependencyError when a tool required by
// the given format is missing.
func ValidateForBuild(ctx context.Context, format string) error {
	for _, st := range CheckAll(ctx) {
		if st.Available {
			continue
		}
		if requiredFor(st.Name, format) {
			return &apperr.DependencyError{Tool: st.Name, Hint: st.Hint}
		}
	}
	return nil
}

func requiredFor(tool, format string) bool {
	switch format {
	case "pdf", "all":
		return tool == ToolConverter || tool == ToolEngine
	case "docx", "html":
		return tool == ToolConverter
	case "diagrams":
		return tool == ToolDiagrams
	default:
		return false
	}
}

func check(ctx context.Context, name string, required bool) Status {
	st := Status{Name: name, Required: required, Hint: InstallHint(name)}
	if _, err := exec.LookPath(name); err != nil {
		return st
	}
	st.Available = true
	st.Version = probeVersion(ctx, name)
	return st
}

// probeVersion runs "<tool> --version" and returns the first output line.
func probeVersion(ctx context.Context, name string) string {
	out, err := exec.CommandContext(ctx, name, "--version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// InstallHint suggests how to install a tool on this OS.
func InstallHint(tool string) string {
	pkg := tool
	if tool == ToolEngine {
		pkg = "texlive"
	}
	switch runtime.GOOS {
	case "darwin":
		switch pkg {
		case "texlive":
			return "brew install --cask mactex"
		case ToolDiagrams:
			return "npm install -g @mermaid-js/mermaid-cli"
		default:
			return "brew install " + pkg
		}
	case "linux":
		switch pkg {
		case "texlive":
			return "sudo apt install texlive-xetex"
		case ToolDiagrams:
			return "npm install -g @mermaid-js/mermaid-cli"
		default:
			return "sudo apt install " + pkg
		}
	default:
		return fmt.Sprintf("install %s via your package manager", pkg)
	}
}
