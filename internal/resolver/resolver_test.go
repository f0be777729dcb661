package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/testutil"
)

func resolverFor(t *testing.T, format string, files map[string]string) *Resolver {
	t.Helper()
	_, store := testutil.TestVault(t, format, files)
	settings, err := LoadSettings(store)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	return New(store, settings)
}

func mustResolve(t *testing.T, r *Resolver, raw, from, want string) {
	t.Helper()
	got, err := r.Resolve(raw, from)
	if err != nil {
		t.Fatalf("Resolve(%q, %q): %v", raw, from, err)
	}
	if got != want {
		t.Errorf("Resolve(%q, %q) = %q, want %q", raw, from, got, want)
	}
}

func mustNotResolve(t *testing.T, r *Resolver, raw, from string) {
	t.Helper()
	got, err := r.Resolve(raw, from)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Resolve(%q, %q) = %q, %v; want ErrNotFound", raw, from, got, err)
	}
}

func TestLoadSettings(t *testing.T) {
	for format, want := range map[string]Convention{
		"":         Shortest,
		"absolute": Absolute,
		"relative": Relative,
		"shortest": Shortest,
	} {
		_, store := testutil.TestVault(t, format, nil)
		s, err := LoadSettings(store)
		if err != nil {
			t.Fatalf("LoadSettings(%q): %v", format, err)
		}
		if s.Convention != want {
			t.Errorf("LoadSettings(%q) = %q, want %q", format, s.Convention, want)
		}
	}
}

func TestLoadSettings_UnknownFormat(t *testing.T) {
	_, store := testutil.TestVault(t, "sideways", nil)
	_, err := LoadSettings(store)
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	dir, store := testutil.TestVault(t, "", nil)
	if err := os.Remove(filepath.Join(dir, ".obsidian", "app.json")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(store); err == nil {
		t.Fatal("missing settings file should be an error")
	}
}

func TestLoadSettings_Malformed(t *testing.T) {
	dir, store := testutil.TestVault(t, "", nil)
	testutil.WriteFiles(t, dir, map[string]string{".obsidian/app.json": "{not json"})
	if _, err := LoadSettings(store); err == nil {
		t.Fatal("malformed settings should be an error")
	}
}

func TestResolve_Absolute(t *testing.T) {
	r := resolverFor(t, "absolute", map[string]string{
		"notes/foo.md": "foo",
		"img/pic.png":  "png",
		"notes/bar":    "no extension",
		"notes/bar.md": "with extension",
		"deep/x/y.md":  "y",
		"deep/x/y.txt": "txt",
	})
	mustResolve(t, r, "notes/foo", "index.md", "notes/foo.md")
	mustResolve(t, r, "notes/foo.md", "index.md", "notes/foo.md")
	mustResolve(t, r, "img/pic.png", "deep/x/y.md", "img/pic.png")
	mustResolve(t, r, "notes/bar", "index.md", "notes/bar.md")
	mustResolve(t, r, "/notes/foo", "index.md", "notes/foo.md")
	mustNotResolve(t, r, "foo", "notes/other.md")
	mustNotResolve(t, r, "", "index.md")
}

func TestResolve_Relative(t *testing.T) {
	r := resolverFor(t, "relative", map[string]string{
		"c.md":      "c",
		"a/b.md":    "b",
		"a/sib.md":  "sib",
		"a/img.png": "png",
	})
	mustResolve(t, r, "../c", "a/b.md", "c.md")
	mustResolve(t, r, "sib", "a/b.md", "a/sib.md")
	mustResolve(t, r, "./img.png", "a/b.md", "a/img.png")
	mustResolve(t, r, "a/b", "c.md", "a/b.md")
	mustNotResolve(t, r, "c", "a/b.md")
	mustNotResolve(t, r, "../../outside", "a/b.md")
}

func TestResolve_Shortest(t *testing.T) {
	r := resolverFor(t, "", map[string]string{
		"x/Foo.md":        "foo",
		"assets/pic.png":  "png",
		"notes/deep/d.md": "d",
	})
	if r.Convention() != Shortest {
		t.Fatalf("convention = %q", r.Convention())
	}
	mustResolve(t, r, "Foo", "index.md", "x/Foo.md")
	mustResolve(t, r, "Foo.md", "index.md", "x/Foo.md")
	mustResolve(t, r, "pic.png", "notes/deep/d.md", "assets/pic.png")
	mustResolve(t, r, "notes/deep/d", "x/Foo.md", "notes/deep/d.md")
	mustNotResolve(t, r, "deep/d", "index.md")
	mustNotResolve(t, r, "Missing", "index.md")
}

func TestResolve_ShortestAmbiguousUsesWalkOrder(t *testing.T) {
	r := resolverFor(t, "shortest", map[string]string{
		"b/Dup.md":   "b",
		"a/z/Dup.md": "az",
		"c/Dup.md":   "c",
	})
	mustResolve(t, r, "Dup", "index.md", "a/z/Dup.md")
}

func TestResolve_ShortestSkipsHiddenDirs(t *testing.T) {
	r := resolverFor(t, "shortest", map[string]string{
		".trash/Gone.md": "gone",
	})
	mustNotResolve(t, r, "Gone", "index.md")
	mustNotResolve(t, r, "app.json", "index.md")
}

func TestResolve_ShortestPrefersMarkdownName(t *testing.T) {
	r := resolverFor(t, "shortest", map[string]string{
		"a/Report":    "raw",
		"b/Report.md": "md",
	})
	mustResolve(t, r, "Report", "index.md", "b/Report.md")
}
