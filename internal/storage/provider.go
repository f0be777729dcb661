// Package storage defines the file-system abstraction shared by the vault
// (read side) and the output tree (write side).
package storage

// WalkFunc is called for every regular file found by Walk.
// path is slash-separated and relative to the provider root.
type WalkFunc func(path string) error

// Provider is the interface for rooted file operations. All paths are
// slash-separated and relative to the provider root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// IsFile reports whether path names an existing regular file. Missing
	// files and paths outside the root report false without error.
	IsFile(path string) (bool, error)
	// Walk calls fn for every regular file under dir in lexical order,
	// skipping hidden directories.
	Walk(dir string, fn WalkFunc) error
	// RemoveAll deletes dir and everything below it.
	RemoveAll(dir string) error
}
