// Package internal provides the application wiring: one-shot builds and
// the watch session with its preview server.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/jera/internal/builder"
	"github.com/starford/jera/internal/discovery"
	"github.com/starford/jera/internal/history"
	"github.com/starford/jera/internal/preview"
	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/watch"
)

// NewLogger builds the process-wide structured JSON logger.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// NewDiscovery creates a Discovery bound to the configured project root.
func NewDiscovery(cfg *Config, logger *slog.Logger) *discovery.Discovery {
	return discovery.New(cfg.Project.Root, discovery.Options{
		ExcludePatterns: cfg.Project.ExcludeFiles,
		ImagesDir:       cfg.Project.ImagesDir,
		TemplatesDir:    cfg.Project.TemplatesDir,
	}, logger)
}

// BuildOnce runs a single build cycle for one format: discovery, metadata
// resolution, and the converter invocation. It returns the artifact path
// and the number of fragments that went into the build.
func BuildOnce(ctx context.Context, cfg *Config, format builder.Format, logger *slog.Logger) (string, int, error) {
	files, err := NewDiscovery(cfg, logger).DiscoverAll()
	if err != nil {
		return "", 0, err
	}
	if len(files.Fragments) == 0 {
		return "", 0, fmt.Errorf("build %s: no fragment files found in %s", format.Name, cfg.Project.Root)
	}

	b := builder.New(format, cfg.Project.TemplatesPath(), logger)
	artifact, err := b.Build(ctx, files.Fragments, cfg.Project.ArtifactPath(format.Extension))
	return artifact, len(files.Fragments), err
}

// RecordCycle appends one completed build cycle to the history log.
// Recording failures are logged and swallowed: history is an
// observability aid, never a reason to fail a build.
func RecordCycle(db history.Log, format, artifact string, fragments int, start time.Time, buildErr error, logger *slog.Logger) {
	rec := history.BuildRecord{
		Format:        format,
		Artifact:      artifact,
		Success:       buildErr == nil,
		FragmentCount: fragments,
		Duration:      time.Since(start),
	}
	if buildErr != nil {
		rec.Diagnostics = buildErr.Error()
	}
	if err := db.RecordBuild(rec); err != nil {
		logger.Warn("record build failed", slog.String("error", err.Error()))
	}
}

// Run starts a watch session: an unconditional initial build, rebuilds
// on qualifying filesystem changes, a preview server over the output
// directory, and build-cycle records in the history log. It blocks until
// the context is cancelled, a shutdown signal arrives, or the watch
// subsystem breaks.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.format.Name == "" {
		return fmt.Errorf("format is required")
	}

	cfg := app.config
	logger := NewLogger(cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("project", cfg.Project.Name),
		slog.String("root", cfg.Project.Root),
		slog.String("format", app.format.Name),
		slog.String("preview_address", cfg.Preview.Address()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Project.OutputPath(), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Project.Root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := history.Open(cfg.History.ResolvedPath(&cfg.Project))
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer db.Close()

	if err := history.Sync(db, store, logger); err != nil {
		logger.Warn("initial history sync failed", slog.String("error", err.Error()))
	}

	broker := preview.NewBroker()
	defer broker.Close()

	httpServer := &http.Server{
		Addr:    cfg.Preview.Address(),
		Handler: preview.NewRouter(cfg.Project.OutputPath(), broker),
	}

	buildCycle := func(cycleCtx context.Context) error {
		broker.PublishBuildEvent(preview.EventBuildStarted, app.format.Name, "")
		start := time.Now()

		artifact, fragments, buildErr := BuildOnce(cycleCtx, cfg, app.format, logger)
		RecordCycle(db, app.format.Name, artifact, fragments, start, buildErr, logger)

		if buildErr != nil {
			broker.PublishBuildEvent(preview.EventBuildFailed, app.format.Name, buildErr.Error())
			return buildErr
		}

		if err := history.Sync(db, store, logger); err != nil {
			logger.Warn("history sync failed", slog.String("error", err.Error()))
		}
		broker.PublishBuildEvent(preview.EventBuildSucceeded, app.format.Name, artifact)
		return nil
	}

	scheduler := watch.New(cfg.Project.Root, buildCycle, logger)

	logger.Info("Watch session starting...", slog.String("preview_address", cfg.Preview.Address()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting preview server", slog.String("address", cfg.Preview.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("preview server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down...")
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Preview server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Watch session error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watch session stopped")
	return nil
}
