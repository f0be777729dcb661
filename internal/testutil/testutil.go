// Package testutil provides shared test helpers for setting up vaults and manifests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultsite/internal/index"
	"github.com/starford/vaultsite/internal/storage"
)

// TestDB creates a temporary manifest database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault whose settings file declares the given
// link format ("" leaves the key out) and which contains files, keyed by
// slash-separated vault path.
func TestVault(t *testing.T, linkFormat string, files map[string]string) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()

	settings := "{}"
	if linkFormat != "" {
		settings = fmt.Sprintf(`{"newLinkFormat": %q}`, linkFormat)
	}
	WriteFiles(t, vaultDir, map[string]string{".obsidian/app.json": settings})
	WriteFiles(t, vaultDir, files)

	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFiles writes files below root, creating directories as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// ReadFile returns the content of a file below root, failing the test if it
// cannot be read.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}
