package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/starford/jera/internal"
	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/builder"
	"github.com/starford/jera/internal/deps"
	"github.com/starford/jera/internal/diagrams"
	"github.com/starford/jera/internal/history"
	"github.com/starford/jera/internal/mcpserver"
	"github.com/starford/jera/internal/scaffold"
	"github.com/starford/jera/internal/storage"
	pkgconfig "github.com/starford/jera/pkg/config"
)

// defaultConfigFile is the file written by init and config init.
const defaultConfigFile = "jera.yml"

// configCandidates are probed in order when --config is not given.
var configCandidates = []string{"jera.yml", "jera.yaml", ".jera.yml", ".jera.yaml"}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	path := cmd.String("config")
	if path == "" {
		path = pkgconfig.Find(configCandidates...)
	}
	if path == "" {
		// No config file is fine: defaults describe a plain project
		// rooted in the current directory.
		return cfg, nil
	}

	if err := pkgconfig.Load(path, cfg); err != nil {
		return nil, &apperr.ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// resolveFormats maps a CLI format name to the concrete descriptors,
// expanding "all" to every known format.
func resolveFormats(name string) ([]builder.Format, error) {
	if name == internal.FormatAll {
		return builder.Formats(), nil
	}
	f, err := builder.Lookup(name)
	if err != nil {
		return nil, err
	}
	return []builder.Format{f}, nil
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	formatName := cmd.String("format")
	if formatName == "" {
		formatName = cfg.Build.DefaultFormat
	}

	if cmd.Bool("watch") {
		if formatName == internal.FormatAll {
			return fmt.Errorf("watch mode builds a single format, not %q", internal.FormatAll)
		}
		format, err := builder.Lookup(formatName)
		if err != nil {
			return err
		}
		return internal.Run(ctx,
			internal.WithConfig(cfg),
			internal.WithFormat(format),
		)
	}

	formats, err := resolveFormats(formatName)
	if err != nil {
		return err
	}

	logger := internal.NewLogger(cfg.App.LogLevel)

	if err := deps.ValidateForBuild(ctx, formatName); err != nil {
		return err
	}

	if cfg.Build.CleanBeforeBuild {
		if err := cleanOutput(cfg, logger); err != nil {
			return err
		}
	}

	// One-shot builds land in the history log too, so status reflects
	// them. A missing or unwritable database only costs the record.
	var db history.Log
	if opened, err := history.Open(cfg.History.ResolvedPath(&cfg.Project)); err != nil {
		logger.Warn("history unavailable", slog.String("error", err.Error()))
	} else {
		db = opened
		defer db.Close()
	}

	for _, format := range formats {
		start := time.Now()
		artifact, fragments, err := internal.BuildOnce(ctx, cfg, format, logger)
		if db != nil {
			internal.RecordCycle(db, format.Name, artifact, fragments, start, err, logger)
		}
		if err != nil {
			return fmt.Errorf("build %s: %w", format.Name, err)
		}
		logger.Info("Build complete",
			slog.String("format", format.Name),
			slog.String("artifact", artifact),
			slog.Int("fragments", fragments),
			slog.Duration("duration", time.Since(start)))
	}

	if db != nil {
		if store, err := storage.NewFS(cfg.Project.Root); err == nil {
			if err := history.Sync(db, store, logger); err != nil {
				logger.Warn("history sync failed", slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	dir := cmd.String("dir")
	logger := internal.NewLogger(slog.LevelInfo)
	return scaffold.Project(dir, name, defaultConfigFile, logger)
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	ok := true
	for _, st := range deps.CheckAll(ctx) {
		if st.Available {
			fmt.Printf("  ok       %-8s %s\n", st.Name, st.Version)
			continue
		}
		fmt.Printf("  missing  %-8s install: %s\n", st.Name, st.Hint)
		if st.Required {
			ok = false
		}
	}
	if !ok {
		return fmt.Errorf("required tools are missing")
	}
	return nil
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App.LogLevel)

	files, err := internal.NewDiscovery(cfg, logger).DiscoverAll()
	if err != nil {
		return err
	}

	fmt.Printf("Project: %s (root %s)\n", cfg.Project.Name, cfg.Project.Root)
	fmt.Printf("Fragments: %d\n", len(files.Fragments))
	for _, f := range files.Fragments {
		title := f.Metadata.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %-30s %s\n", f.Name(), title)
	}
	fmt.Printf("Diagrams: %d  Images: %d  Templates: %d  Bibliographies: %d\n",
		len(files.DiagramFiles), len(files.ImageFiles), len(files.TemplateFiles), len(files.BibFiles))

	db, err := history.Open(cfg.History.ResolvedPath(&cfg.Project))
	if err != nil {
		// Status stays useful without a history database.
		fmt.Println("History: unavailable")
		return nil
	}
	defer db.Close()

	if recent, err := db.RecentBuilds(5); err == nil && len(recent) > 0 {
		fmt.Println("Recent builds:")
		for _, rec := range recent {
			outcome := "ok"
			if !rec.Success {
				outcome = "failed"
			}
			fmt.Printf("  %s %-6s %-6s %s\n",
				rec.CreatedAt.Format(time.RFC3339), rec.Format, outcome, rec.Duration)
		}
	} else {
		fmt.Println("No builds recorded")
	}

	store, err := storage.NewFS(cfg.Project.Root)
	if err != nil {
		return err
	}
	changed, err := history.ChangedSinceLastSync(db, store)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		fmt.Printf("Changed since last build: %s\n", strings.Join(changed, ", "))
	}
	return nil
}

func cleanOutput(cfg *internal.Config, logger *slog.Logger) error {
	out := cfg.Project.OutputPath()
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("clean output dir: %w", err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("recreate output dir: %w", err)
	}
	logger.Info("Output directory cleaned", slog.String("path", out))
	return nil
}

func runClean(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App.LogLevel)
	return cleanOutput(cfg, logger)
}

func runDiagrams(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App.LogLevel)

	if err := deps.ValidateForBuild(ctx, "diagrams"); err != nil {
		return err
	}

	files, err := internal.NewDiscovery(cfg, logger).DiscoverAll()
	if err != nil {
		return err
	}

	r := diagrams.New(filepath.Join(cfg.Project.OutputPath(), "diagrams"), cmd.Bool("png"), logger)
	if err := r.RenderAll(ctx, files.DiagramFiles); err != nil {
		return err
	}
	return r.RenderInline(ctx, files.Fragments)
}

func runConfigShow(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigInit(ctx context.Context, cmd *cli.Command) error {
	if existing := pkgconfig.Find(configCandidates...); existing != "" {
		return fmt.Errorf("config file already exists: %s", existing)
	}
	cfg := internal.NewDefaultConfig()
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(defaultConfigFile, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", defaultConfigFile)
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App.LogLevel)

	srv := mcpserver.New(mcpserver.Options{
		Discovery:    internal.NewDiscovery(cfg, logger),
		TemplatesDir: cfg.Project.TemplatesPath(),
		ArtifactPath: cfg.Project.ArtifactPath,
	})
	return srv.ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:  "jera",
		Usage: "Assemble Markdown fragments into publication-ready documents with live rebuild and preview",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "jera.yml",
				Sources:     cli.EnvVars("JERA_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create a new document project skeleton",
				Action: runInit,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Document title",
						Value: "document",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Project directory",
						Value: ".",
					},
				},
			},
			{
				Name:   "build",
				Usage:  "Build the document once, or continuously with --watch",
				Action: runBuild,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (pdf, docx, html, all)",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Rebuild on file changes and serve a live preview",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show discovered fragments, assets, and the last build",
				Action: runStatus,
			},
			{
				Name:   "check",
				Usage:  "Check availability of external tools",
				Action: runCheck,
			},
			{
				Name:   "clean",
				Usage:  "Remove generated artifacts from the output directory",
				Action: runClean,
			},
			{
				Name:   "diagrams",
				Usage:  "Render Mermaid diagram files and fenced blocks to SVG",
				Action: runDiagrams,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "png",
						Usage: "Also render each diagram to PNG",
					},
				},
			},
			{
				Name:  "config",
				Usage: "Inspect or create the configuration file",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the effective configuration",
						Action: runConfigShow,
					},
					{
						Name:   "init",
						Usage:  "Write a default config file",
						Action: runConfigInit,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the project over the Model Context Protocol on stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
