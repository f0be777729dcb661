package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/checksum"
	"github.com/starford/vaultsite/internal/models"
	"github.com/starford/vaultsite/internal/normalize"
	"github.com/starford/vaultsite/internal/parser"
	"github.com/starford/vaultsite/internal/resolver"
	"github.com/starford/vaultsite/internal/storage"
)

// notFoundSuffix marks the alias of a link whose target does not exist.
const notFoundSuffix = " -file not found-"

var imageExts = []string{".jpg", ".gif", ".png", ".svg"}

// visitedSet holds the vault paths already claimed by the run. A path is
// added before its file is processed, so cycles terminate.
type visitedSet map[string]struct{}

func (s visitedSet) has(p string) bool {
	_, ok := s[p]
	return ok
}

func (s visitedSet) add(p string) {
	s[p] = struct{}{}
}

type exporter struct {
	vault    storage.Provider
	out      storage.Provider
	resolver *resolver.Resolver
	logger   *slog.Logger
	visited  visitedSet
	result   *Result
}

// processFile normalizes a note, rewrites its links, follows every newly
// reached target and writes the rewritten note to the same relative path.
func (e *exporter) processFile(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.visited.add(rel)

	data, err := e.vault.Read(rel)
	if err != nil {
		return fmt.Errorf("export: read %s: %w", rel, err)
	}
	text := normalize.Normalize(string(data))

	matches := slices.Collect(parser.Scan(text))
	edits := make([]parser.Edit, 0, len(matches))
	for _, m := range matches {
		replacement, err := e.rewrite(ctx, rel, m)
		if err != nil {
			return err
		}
		edits = append(edits, parser.Edit{Start: m.Start, End: m.End, Replacement: replacement})
	}

	rewritten, err := parser.Splice(text, edits)
	if err != nil {
		return fmt.Errorf("export: %s: %w", rel, err)
	}
	if err := e.write(rel, models.KindNote, []byte(rewritten)); err != nil {
		return err
	}
	e.logger.Debug("export: note written",
		slog.String("path", rel),
		slog.Int("links", len(matches)))
	return nil
}

// rewrite returns the canonical markdown replacing one link occurrence found
// in the note from, exporting its target first when it has not been seen.
func (e *exporter) rewrite(ctx context.Context, from string, m parser.Match) (string, error) {
	l := m.Link
	edge := models.LinkEdge{Source: from, Raw: m.Literal, Syntax: string(m.Syntax)}

	if l.IsExternal() {
		edge.External = true
		e.result.Links = append(e.result.Links, edge)
		return parser.Render(l), nil
	}

	target, err := e.resolver.Resolve(l.LookupPath(), from)
	if errors.Is(err, apperr.ErrNotFound) {
		e.logger.Warn("export: link not found",
			slog.String("source", from),
			slog.String("link", l.Path))
		e.result.Links = append(e.result.Links, edge)
		l.Alias = l.Path + notFoundSuffix
		return parser.Render(l), nil
	}
	if err != nil {
		return "", err
	}
	edge.Target, edge.Resolved = target, true
	e.result.Links = append(e.result.Links, edge)

	if !e.visited.has(target) {
		if isNote(target) {
			if err := e.processFile(ctx, target); err != nil {
				return "", err
			}
		} else if err := e.copyAsset(target); err != nil {
			return "", err
		}
	}

	rel, err := relativeTo(from, target)
	if err != nil {
		return "", err
	}
	if isImage(target) {
		l.Path = rel
		return parser.RenderImage(l), nil
	}
	if l.Alias == "" {
		l.Alias = strings.TrimSuffix(l.Path, ".md")
	}
	l.Path = rel
	return parser.Render(l), nil
}

// copyAsset copies a non-note file byte for byte.
func (e *exporter) copyAsset(rel string) error {
	e.visited.add(rel)
	data, err := e.vault.Read(rel)
	if err != nil {
		return fmt.Errorf("export: read %s: %w", rel, err)
	}
	if err := e.write(rel, models.KindAsset, data); err != nil {
		return err
	}
	e.logger.Debug("export: asset copied", slog.String("path", rel))
	return nil
}

func (e *exporter) write(rel, kind string, data []byte) error {
	if err := e.out.Write(rel, data); err != nil {
		return fmt.Errorf("export: write %s: %w", rel, err)
	}
	fp := checksum.Of(data)
	e.result.Files = append(e.result.Files, models.ExportedFile{
		Path:     rel,
		Kind:     kind,
		Checksum: fp.Sum,
		Size:     fp.Size,
	})
	return nil
}

// relativeTo returns the forward-slash path of target as seen from the
// directory holding from. The output tree mirrors the vault, so vault-relative
// and output-relative paths agree.
func relativeTo(from, target string) (string, error) {
	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(from)), filepath.FromSlash(target))
	if err != nil {
		return "", fmt.Errorf("export: relative path %s -> %s: %w", from, target, err)
	}
	return filepath.ToSlash(rel), nil
}

func isNote(p string) bool {
	return strings.HasSuffix(p, ".md")
}

func isImage(p string) bool {
	return slices.Contains(imageExts, strings.ToLower(path.Ext(p)))
}
