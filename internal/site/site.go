// Package site scaffolds and builds the static site around an exported tree.
package site

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/vaultsite/internal/parser"
	"github.com/starford/vaultsite/internal/storage"
)

const (
	// ConfigFile is the site generator's configuration file in the output root.
	ConfigFile = "mkdocs.yml"
	// SiteDir is where the generator writes the rendered site.
	SiteDir = "site"
	// DefaultCommand builds the site from the output root.
	DefaultCommand = "mkdocs build"
	// ReloadScriptPath is the absolute URL of ReloadScript on the preview
	// server. Generated configurations load it on every page.
	ReloadScriptPath = "/_vaultsite/reload.js"
)

// ReloadScript reloads the page on site.reload events from the preview server.
//
//go:embed reload.js
var ReloadScript []byte

// Config is the generated site configuration.
type Config struct {
	SiteName           string   `yaml:"site_name"`
	DocsDir            string   `yaml:"docs_dir"`
	SiteDir            string   `yaml:"site_dir"`
	Theme              Theme    `yaml:"theme"`
	MarkdownExtensions []string `yaml:"markdown_extensions"`
	ExtraJavascript    []string `yaml:"extra_javascript,omitempty"`
}

// Theme selects the site theme.
type Theme struct {
	Name string `yaml:"name"`
}

// Params feeds EnsureConfig.
type Params struct {
	// SiteName overrides the derived name when set.
	SiteName string
	// DocsDir is the exported tree, relative to the output root.
	DocsDir string
	// Start is the exported start note, relative to DocsDir.
	Start string
}

// EnsureConfig writes ConfigFile into the output root unless one exists, so
// hand-edited configurations survive re-exports. It reports whether a file
// was written.
func EnsureConfig(out storage.Provider, p Params) (bool, error) {
	exists, err := out.IsFile(ConfigFile)
	if err != nil {
		return false, fmt.Errorf("site: stat config: %w", err)
	}
	if exists {
		return false, nil
	}

	cfg := Config{
		SiteName: p.SiteName,
		DocsDir:  p.DocsDir,
		SiteDir:  SiteDir,
		Theme:    Theme{Name: "material"},
		// attr_list renders the {width="N"} image attributes.
		MarkdownExtensions: []string{"attr_list"},
		ExtraJavascript:    []string{ReloadScriptPath},
	}
	if cfg.SiteName == "" {
		cfg.SiteName = deriveName(out, path.Join(p.DocsDir, p.Start))
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("site: marshal config: %w", err)
	}
	if err := out.Write(ConfigFile, data); err != nil {
		return false, fmt.Errorf("site: write config: %w", err)
	}
	return true, nil
}

// deriveName names the site after the start note's title, else its file stem.
func deriveName(out storage.Provider, start string) string {
	if data, err := out.Read(start); err == nil {
		if title := parser.Title(data); title != "" {
			return title
		}
	}
	return strings.TrimSuffix(path.Base(start), path.Ext(start))
}

// Build runs command (split on white space, DefaultCommand when empty) in the
// output root. A non-zero exit is returned as an error carrying the
// command's stderr.
func Build(ctx context.Context, outputRoot, command string, logger *slog.Logger) error {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		argv = strings.Fields(DefaultCommand)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = outputRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger.Debug("site: build finished",
		slog.String("command", strings.Join(argv, " ")),
		slog.Duration("took", time.Since(start)),
		slog.String("stdout", strings.TrimSpace(stdout.String())))
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("site: %s exited with %d: %s", argv[0], exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}
	return fmt.Errorf("site: run %s: %w", argv[0], err)
}
