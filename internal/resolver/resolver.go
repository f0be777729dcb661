// Package resolver maps a link's textual path to the vault file it names,
// following the vault's link addressing convention.
package resolver

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/storage"
)

// Resolver resolves link paths against one vault. It is not safe for
// concurrent use.
type Resolver struct {
	vault      storage.Provider
	convention Convention

	// names maps a file's base name to the first vault path carrying it, in
	// storage walk order. Built on the first bare-name lookup.
	names map[string]string
}

// New creates a Resolver for the vault using the given settings.
func New(vault storage.Provider, settings Settings) *Resolver {
	c := settings.Convention
	if c == "" {
		c = Shortest
	}
	return &Resolver{vault: vault, convention: c}
}

// Convention returns the addressing convention in effect.
func (r *Resolver) Convention() Convention {
	return r.convention
}

// Resolve returns the vault-relative path of the file raw refers to, as seen
// from the vault file from. Unresolvable paths yield apperr.ErrNotFound; any
// other error is an I/O fault.
func (r *Resolver) Resolve(raw, from string) (string, error) {
	var (
		found string
		err   error
	)
	switch r.convention {
	case Absolute:
		found, err = r.check(raw)
	case Relative:
		found, err = r.check(path.Join(path.Dir(from), raw))
	default:
		found, err = r.resolveShortest(raw)
	}
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("resolver: %q from %s: %w", raw, from, apperr.ErrNotFound)
	}
	return found, nil
}

func (r *Resolver) resolveShortest(raw string) (string, error) {
	if strings.Contains(raw, "/") {
		return r.check(raw)
	}
	if r.names == nil {
		if err := r.buildNames(); err != nil {
			return "", err
		}
	}
	rel, ok := r.names[raw+".md"]
	if !ok {
		rel, ok = r.names[raw]
	}
	if !ok {
		return "", nil
	}
	return r.check(rel)
}

// check returns p+".md" or p, whichever is an existing file first, or "".
func (r *Resolver) check(p string) (string, error) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", nil
	}
	for _, candidate := range []string{p + ".md", p} {
		ok, err := r.vault.IsFile(candidate)
		if err != nil {
			return "", fmt.Errorf("resolver: %w", err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", nil
}

func (r *Resolver) buildNames() error {
	names := make(map[string]string)
	err := r.vault.Walk("", func(p string) error {
		base := path.Base(p)
		if _, seen := names[base]; !seen {
			names[base] = p
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolver: index vault names: %w", err)
	}
	r.names = names
	return nil
}
