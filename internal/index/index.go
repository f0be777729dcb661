package index

import "github.com/starford/vaultsite/internal/models"

// Manifest defines the export manifest operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Manifest interface {
	Record(run models.RunSummary, files []models.ExportedFile, links []models.LinkEdge) (int64, error)
	LastRun() (*models.RunSummary, error)
	Files() ([]models.ExportedFile, error)
	Checksums() (map[string]string, error)
	BrokenLinks() ([]models.LinkEdge, error)
	Backlinks(target string) ([]string, error)
	Close() error
}

// Verify *DB satisfies Manifest at compile time.
var _ Manifest = (*DB)(nil)
