// Package siteservice coordinates export runs, the manifest and the site
// build. It is shared by the CLI, the preview server and the MCP server.
package siteservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/starford/vaultsite/internal/export"
	"github.com/starford/vaultsite/internal/index"
	"github.com/starford/vaultsite/internal/models"
	"github.com/starford/vaultsite/internal/resolver"
	"github.com/starford/vaultsite/internal/site"
	"github.com/starford/vaultsite/internal/storage"
)

// Settings configures the service.
type Settings struct {
	VaultRoot  string
	OutputRoot string
	Start      string

	SiteName     string
	Scaffold     bool
	Build        bool
	BuildCommand string
}

// Listener is notified after every export attempt.
type Listener func(models.ExportEvent)

// Service serialises export runs against one vault.
type Service struct {
	settings Settings
	manifest index.Manifest
	logger   *slog.Logger

	mu       sync.Mutex
	listener Listener
}

// NewService creates a new service. manifest may be nil, in which case runs
// are not recorded.
func NewService(settings Settings, manifest index.Manifest, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{settings: settings, manifest: manifest, logger: logger}
}

// Settings returns the service settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// OnExport sets the listener called after every export attempt.
func (s *Service) OnExport(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Export runs a full export, records it in the manifest and, when enabled,
// scaffolds and builds the site. Concurrent calls run one after another.
func (s *Service) Export(ctx context.Context) (*export.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, changed, err := s.export(ctx)
	if err != nil {
		s.logger.Error("siteservice: export failed", slog.String("error", err.Error()))
		s.notify(models.ExportEvent{Error: err.Error()})
		return nil, err
	}
	summary := res.Summary()
	s.notify(models.ExportEvent{Summary: &summary, Changed: changed})
	return res, nil
}

func (s *Service) export(ctx context.Context) (*export.Result, []string, error) {
	var previous map[string]string
	if s.manifest != nil {
		sums, err := s.manifest.Checksums()
		if err != nil {
			return nil, nil, fmt.Errorf("siteservice: previous checksums: %w", err)
		}
		previous = sums
	}

	res, err := export.Run(ctx, export.Options{
		VaultRoot:  s.settings.VaultRoot,
		OutputRoot: s.settings.OutputRoot,
		Start:      s.settings.Start,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	if s.settings.Scaffold {
		out, err := storage.NewFS(s.settings.OutputRoot)
		if err != nil {
			return nil, nil, fmt.Errorf("siteservice: open output: %w", err)
		}
		written, err := site.EnsureConfig(out, site.Params{
			SiteName: s.settings.SiteName,
			DocsDir:  export.WikiDir,
			Start:    res.Start,
		})
		if err != nil {
			return nil, nil, err
		}
		if written {
			s.logger.Info("siteservice: site config created", slog.String("path", site.ConfigFile))
		}
	}

	if s.settings.Build {
		if err := site.Build(ctx, s.settings.OutputRoot, s.settings.BuildCommand, s.logger); err != nil {
			return nil, nil, err
		}
		s.logger.Info("siteservice: site built")
	}

	// Only complete runs are recorded, so the next run diffs against the
	// last site that was actually built.
	if s.manifest != nil {
		if _, err := s.manifest.Record(res.Summary(), res.Files, res.Links); err != nil {
			return nil, nil, fmt.Errorf("siteservice: record run: %w", err)
		}
	}

	return res, changedFiles(previous, res.Files), nil
}

func (s *Service) notify(ev models.ExportEvent) {
	if s.listener != nil {
		s.listener(ev)
	}
}

// ResolveLink resolves a link path as written in the note from, using the
// vault's current settings.
func (s *Service) ResolveLink(raw, from string) (string, resolver.Convention, error) {
	vault, err := storage.NewFS(s.settings.VaultRoot)
	if err != nil {
		return "", "", fmt.Errorf("siteservice: open vault: %w", err)
	}
	settings, err := resolver.LoadSettings(vault)
	if err != nil {
		return "", "", err
	}
	r := resolver.New(vault, settings)
	target, err := r.Resolve(raw, from)
	return target, r.Convention(), err
}

// changedFiles lists the paths added, modified or dropped since the previous
// run, sorted.
func changedFiles(previous map[string]string, files []models.ExportedFile) []string {
	var changed []string
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f.Path] = struct{}{}
		if previous[f.Path] != f.Checksum {
			changed = append(changed, f.Path)
		}
	}
	for p := range previous {
		if _, ok := seen[p]; !ok {
			changed = append(changed, p)
		}
	}
	slices.Sort(changed)
	return changed
}
