// Package watcher reports vault changes, batched into debounced bursts.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vaultsite/internal/resolver"
)

// Debounce is the quiet period after the last event before a burst is reported.
const Debounce = 200 * time.Millisecond

// ChangeFunc receives the sorted, de-duplicated vault-relative paths touched
// during one burst of events.
type ChangeFunc func(paths []string)

// Watch starts an fsnotify watcher on the vault root and calls onChange once
// per burst of file events until ctx is cancelled.
//
// Hidden directories are not watched, except the editor settings directory
// whose settings file decides how links resolve. Directories listed in ignore
// (absolute paths) are skipped. New directories created at runtime are added
// to the watch list.
func Watch(ctx context.Context, root string, ignore []string, logger *slog.Logger, onChange ChangeFunc) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	skip := func(dir string) bool {
		if dir == root {
			return false
		}
		for _, ig := range ignore {
			if dir == ig || strings.HasPrefix(dir, ig+string(os.PathSeparator)) {
				return true
			}
		}
		return isHiddenDir(filepath.Base(dir))
	}

	if err := addDirsRecursive(w, root, skip); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending = make(map[string]struct{})
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			timer, timerCh = nil, nil
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			logger.Debug("watcher: burst", slog.Int("paths", len(paths)))
			if onChange != nil {
				onChange(paths)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name
			if skip(filepath.Dir(absPath)) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if skip(absPath) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath, skip); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Files may have landed before the directory was watched.
					markDir(root, absPath, pending)
					schedule()
					continue
				}
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !relevant(rel) {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant filters out editor state churn: below the settings directory only
// the settings file itself matters.
func relevant(rel string) bool {
	settingsDir := filepath.ToSlash(filepath.Dir(resolver.SettingsPath))
	if strings.HasPrefix(rel, settingsDir+"/") {
		return rel == resolver.SettingsPath
	}
	return true
}

func isHiddenDir(name string) bool {
	settingsDir := filepath.Dir(filepath.FromSlash(resolver.SettingsPath))
	return strings.HasPrefix(name, ".") && name != settingsDir
}

// markDir records every regular file below dir as pending.
func markDir(root, dir string, pending map[string]struct{}) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			pending[filepath.ToSlash(rel)] = struct{}{}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// pruning those skip rejects.
func addDirsRecursive(w *fsnotify.Watcher, root string, skip func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skip(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
