// Package export copies everything reachable from a start note out of a vault
// into a site source tree, rewriting each link for the new layout.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/models"
	"github.com/starford/vaultsite/internal/resolver"
	"github.com/starford/vaultsite/internal/storage"
)

// WikiDir is the directory below the output root that mirrors the vault.
const WikiDir = "wiki"

// Options configures one export run.
type Options struct {
	VaultRoot  string
	OutputRoot string
	// Start is the vault-relative path of the note seeding the traversal.
	// The ".md" extension may be omitted.
	Start  string
	Logger *slog.Logger
}

// Validate validates the options.
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.VaultRoot, validation.Required),
		validation.Field(&o.OutputRoot, validation.Required),
		validation.Field(&o.Start, validation.Required),
	)
}

// Result is the reachability closure produced by a run.
type Result struct {
	Vault    string
	Start    string
	Settings resolver.Settings
	// Files lists every written file in completion order: a note is listed
	// after everything it reaches.
	Files      []models.ExportedFile
	Links      []models.LinkEdge
	FinishedAt time.Time
}

// Broken returns the links that could not be resolved.
func (r *Result) Broken() []models.LinkEdge {
	var out []models.LinkEdge
	for _, l := range r.Links {
		if !l.Resolved && !l.External {
			out = append(out, l)
		}
	}
	return out
}

// Summary condenses the result for logs, the manifest and live-reload events.
func (r *Result) Summary() models.RunSummary {
	return models.RunSummary{
		Start:      r.Start,
		Vault:      r.Vault,
		Convention: string(r.Settings.Convention),
		Files:      len(r.Files),
		Links:      len(r.Links),
		Broken:     len(r.Broken()),
		FinishedAt: r.FinishedAt,
	}
}

// Run clears <output>/wiki and exports the closure of opts.Start into it.
// Unresolvable links are reported in the result; I/O failures abort the run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("export: %w: %w", apperr.ErrInvalidConfig, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	vault, err := storage.NewFS(opts.VaultRoot)
	if err != nil {
		return nil, fmt.Errorf("export: open vault: %w", err)
	}
	settings, err := resolver.LoadSettings(vault)
	if err != nil {
		return nil, err
	}

	// The start note is checked before anything in the output is removed.
	start, err := locateStart(vault, opts.Start)
	if err != nil {
		return nil, err
	}

	out, err := prepareOutput(vault.Root(), opts.OutputRoot)
	if err != nil {
		return nil, err
	}

	e := &exporter{
		vault:    vault,
		out:      out,
		resolver: resolver.New(vault, settings),
		logger:   logger,
		visited:  make(visitedSet),
		result: &Result{
			Vault:    vault.Root(),
			Start:    start,
			Settings: settings,
		},
	}

	logger.Info("export: started",
		slog.String("vault", vault.Root()),
		slog.String("output", out.Root()),
		slog.String("start", start),
		slog.String("convention", string(settings.Convention)))

	if err := e.processFile(ctx, start); err != nil {
		return nil, err
	}
	e.result.FinishedAt = time.Now().UTC()

	s := e.result.Summary()
	logger.Info("export: finished",
		slog.Int("files", s.Files),
		slog.Int("links", s.Links),
		slog.Int("broken", s.Broken))
	return e.result, nil
}

// prepareOutput recreates <output>/wiki and returns a provider rooted there.
func prepareOutput(vaultRoot, outputRoot string) (*storage.FS, error) {
	absOut, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("export: resolve output: %w", err)
	}
	wikiAbs := filepath.Join(absOut, WikiDir)
	if within(vaultRoot, wikiAbs) {
		return nil, fmt.Errorf("export: output %s lies inside the vault: %w", wikiAbs, apperr.ErrInvalidConfig)
	}
	if within(wikiAbs, vaultRoot) {
		return nil, fmt.Errorf("export: vault %s lies inside the output %s: %w", vaultRoot, wikiAbs, apperr.ErrInvalidConfig)
	}

	if err := os.MkdirAll(absOut, 0o755); err != nil {
		return nil, fmt.Errorf("export: create output: %w", err)
	}
	root, err := storage.NewFS(absOut)
	if err != nil {
		return nil, fmt.Errorf("export: open output: %w", err)
	}
	if err := root.RemoveAll(WikiDir); err != nil {
		return nil, fmt.Errorf("export: clear output: %w", err)
	}
	if err := os.MkdirAll(wikiAbs, 0o755); err != nil {
		return nil, fmt.Errorf("export: create wiki dir: %w", err)
	}
	out, err := storage.NewFS(wikiAbs)
	if err != nil {
		return nil, fmt.Errorf("export: open wiki dir: %w", err)
	}
	return out, nil
}

// within reports whether p equals dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// locateStart accepts the start note with or without its extension.
func locateStart(vault storage.Provider, start string) (string, error) {
	start = path.Clean(strings.TrimPrefix(filepath.ToSlash(start), "/"))
	for _, candidate := range []string{start, start + ".md"} {
		ok, err := vault.IsFile(candidate)
		if err != nil {
			return "", fmt.Errorf("export: locate start: %w", err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("export: start note %q: %w", start, apperr.ErrNotFound)
}
