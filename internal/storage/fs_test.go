package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestIsFile(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("dir/file.md", []byte("x"))

	cases := map[string]bool{
		"dir/file.md":       true,
		"dir":               false,
		"missing.md":        false,
		"dir/file.md/child": false,
		"../escape.md":      false,
		"/etc/passwd":       false,
	}
	for p, want := range cases {
		got, err := s.IsFile(p)
		if err != nil {
			t.Errorf("IsFile(%q): unexpected error %v", p, err)
			continue
		}
		if got != want {
			t.Errorf("IsFile(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestWalk_LexicalOrderSkipsHidden(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("a/z.png", []byte("z"))
	_ = s.Write("a/b.md", []byte("ab"))
	_ = s.Write(".obsidian/app.json", []byte("{}"))
	_ = s.Write("c/.hidden/x.md", []byte("x"))

	var got []string
	err := s.Walk("", func(p string) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"a/b.md", "a/z.png", "b.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("walk order = %v, want %v", got, want)
	}
}

func TestWalk_StopEarly(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("b.md", []byte("b"))

	n := 0
	err := s.Walk("", func(string) error {
		n++
		return filepath.SkipAll
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if n != 1 {
		t.Errorf("visited %d files, want 1", n)
	}
}

func TestRemoveAll(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("wiki/a/b.md", []byte("x"))
	if err := s.RemoveAll("wiki"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "wiki")); !os.IsNotExist(err) {
		t.Errorf("wiki dir still present: %v", err)
	}
	if err := s.RemoveAll(""); err == nil {
		t.Error("removing the root should fail")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".vaultsite-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "vaultsite-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
