// Package internal provides the application initialization and runtime logic
// behind each command.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultsite/internal/api"
	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/index"
	"github.com/starford/vaultsite/internal/mcpserver"
	"github.com/starford/vaultsite/internal/siteservice"
	"github.com/starford/vaultsite/internal/sse"
	"github.com/starford/vaultsite/internal/watcher"
)

// Version is reported by the MCP server. Overridden at build time.
var Version = "dev"

// ErrBrokenLinks is returned by Report when the last export left links
// unresolved.
var ErrBrokenLinks = errors.New("broken links found")

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Logs go to stderr: stdout carries reports and the MCP protocol.
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	return app, nil
}

func (a *application) openManifest() (*index.DB, error) {
	path := a.config.Manifest.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	db, err := index.Open(path)
	if err != nil {
		return nil, fmt.Errorf("init manifest: %w", err)
	}
	return db, nil
}

func (a *application) newService(manifest index.Manifest) *siteservice.Service {
	cfg := a.config
	return siteservice.NewService(siteservice.Settings{
		VaultRoot:    cfg.Vault.Path,
		OutputRoot:   cfg.Export.Output,
		Start:        cfg.Export.Start,
		SiteName:     cfg.Site.Name,
		Scaffold:     cfg.Site.Scaffold,
		Build:        cfg.Site.Build,
		BuildCommand: cfg.Site.Command,
	}, manifest, a.logger)
}

func (a *application) logConfig() {
	cfg := a.config
	a.logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("output_path", cfg.Export.Output),
		slog.String("start", cfg.Export.Start),
		slog.String("manifest_path", cfg.Manifest.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))
}

// Export runs a single export of the vault and records it in the manifest.
func Export(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	app.logConfig()

	db, err := app.openManifest()
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := app.newService(db).Export(ctx)
	if err != nil {
		return err
	}
	if broken := res.Broken(); len(broken) > 0 {
		app.logger.Warn("export: finished with broken links", slog.Int("broken", len(broken)))
	}
	return nil
}

// Report prints the broken links recorded by the last export and returns
// ErrBrokenLinks when there are any.
func Report(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := app.openManifest()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.LastRun()
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("report: no export recorded in %s", app.config.Manifest.Path)
	}
	if err != nil {
		return err
	}

	links, err := db.BrokenLinks()
	if err != nil {
		return err
	}
	for _, l := range links {
		fmt.Fprintf(app.stdout, "%s: %s -> not found\n", l.Source, l.Raw)
	}
	fmt.Fprintf(app.stdout, "%d files exported from %s, %d broken links\n", run.Files, run.Start, len(links))

	if len(links) > 0 {
		return fmt.Errorf("report: %d %w", len(links), ErrBrokenLinks)
	}
	return nil
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	app.logConfig()

	db, err := app.openManifest()
	if err != nil {
		return err
	}
	defer db.Close()

	return mcpserver.New(app.newService(db), db, Version).ServeStdio()
}

// Serve exports the vault, then serves the site with live reload and
// re-exports on every vault change until a shutdown signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	app.logConfig()

	db, err := app.openManifest()
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	svc := app.newService(db)
	svc.OnExport(broker.PublishExport)

	// Run initial export.
	if _, err := svc.Export(ctx); err != nil {
		logger.Warn("initial export failed", slog.String("error", err.Error()))
	}

	r := newRouter(cfg, svc, db, broker)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	ignore, err := watchIgnore(cfg)
	if err != nil {
		return err
	}
	ownFiles := manifestFilter(cfg)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Re-export on vault changes.
	g.Go(func() error {
		return watcher.Watch(gCtx, cfg.Vault.Path, ignore, logger, vaultChanged(gCtx, svc, broker, ownFiles, logger))
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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
		stop()

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// vaultChanged returns the watcher callback: it drops the manifest's own
// files, announces the change to preview clients and re-exports.
func vaultChanged(ctx context.Context, svc *siteservice.Service, broker *sse.Broker, ownFiles func(string) bool, logger *slog.Logger) func([]string) {
	return func(paths []string) {
		paths = slices.DeleteFunc(paths, ownFiles)
		if len(paths) == 0 {
			return
		}
		logger.Info("vault changed", slog.Int("paths", len(paths)), slog.String("first", paths[0]))
		broker.Publish(sse.Event{Type: sse.TypeVaultChanged, Data: map[string][]string{"paths": paths}})
		// Failures are logged and published by the service.
		_, _ = svc.Export(ctx)
	}
}

// newRouter builds the preview server routes: health checks, the API under
// /api and the site everywhere else.
func newRouter(cfg *Config, svc *siteservice.Service, db index.Manifest, broker *sse.Broker) http.Handler {
	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := db.LastRun(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no export"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","clients":%d}`, broker.ClientCount())
	})

	// Mount API routes under /api, the site everywhere else.
	r.Mount("/api", api.NewRouter(svc, db, cfg.Auth.BearerToken(), broker))
	r.Handle("/*", api.NewSiteHandler(cfg.Export.Output))

	return r
}

// watchIgnore returns the absolute directories the watcher must skip: the
// output tree may live below the vault.
func watchIgnore(cfg *Config) ([]string, error) {
	out, err := filepath.Abs(cfg.Export.Output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	return []string{out}, nil
}

// manifestFilter matches vault-relative paths written by the manifest
// database itself, including its journal files, so recording a run does not
// trigger another one.
func manifestFilter(cfg *Config) func(string) bool {
	vault, err1 := filepath.Abs(cfg.Vault.Path)
	db, err2 := filepath.Abs(cfg.Manifest.Path)
	if err1 != nil || err2 != nil {
		return func(string) bool { return false }
	}
	rel, err := filepath.Rel(vault, db)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return func(string) bool { return false }
	}
	rel = filepath.ToSlash(rel)
	return func(p string) bool {
		return strings.HasPrefix(p, rel)
	}
}
