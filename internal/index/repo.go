package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/models"
)

// Record stores a finished run. The files and links tables are replaced by
// the run's contents within one transaction; the runs table keeps history.
func (db *DB) Record(run models.RunSummary, files []models.ExportedFile, links []models.LinkEdge) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	res, err := tx.Exec(`
		INSERT INTO runs (start, vault, convention, files, links, broken, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.Start, run.Vault, run.Convention, run.Files, run.Links, run.Broken, finished)
	if err != nil {
		return 0, fmt.Errorf("index: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index: run id: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links`); err != nil {
		return 0, fmt.Errorf("index: clear links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM files`); err != nil {
		return 0, fmt.Errorf("index: clear files: %w", err)
	}

	if len(files) > 0 {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO files (path, kind, checksum, size, run_id) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("index: prepare file insert: %w", err)
		}
		defer stmt.Close()
		for _, f := range files {
			if _, err := stmt.Exec(f.Path, f.Kind, f.Checksum, f.Size, runID); err != nil {
				return 0, fmt.Errorf("index: insert file: %w", err)
			}
		}
	}

	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO links (seq, source, raw, target, syntax, external, resolved, run_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for i, l := range links {
			if _, err := stmt.Exec(i, l.Source, l.Raw, l.Target, l.Syntax, l.External, l.Resolved, runID); err != nil {
				return 0, fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	return runID, nil
}

// LastRun returns the most recent run, or apperr.ErrNotFound before the first.
func (db *DB) LastRun() (*models.RunSummary, error) {
	var r models.RunSummary
	err := db.conn.QueryRow(`
		SELECT start, vault, convention, files, links, broken, finished_at
		FROM runs ORDER BY id DESC LIMIT 1
	`).Scan(&r.Start, &r.Vault, &r.Convention, &r.Files, &r.Links, &r.Broken, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: last run: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: last run: %w", err)
	}
	return &r, nil
}

// Files returns every file of the latest run ordered by path.
func (db *DB) Files() ([]models.ExportedFile, error) {
	rows, err := db.conn.Query(`SELECT path, kind, checksum, size FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: files: %w", err)
	}
	defer rows.Close()

	var out []models.ExportedFile
	for rows.Next() {
		var f models.ExportedFile
		if err := rows.Scan(&f.Path, &f.Kind, &f.Checksum, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Checksums maps every file of the latest run to its checksum.
func (db *DB) Checksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// BrokenLinks returns the unresolved vault links of the latest run in the
// order they were encountered.
func (db *DB) BrokenLinks() ([]models.LinkEdge, error) {
	rows, err := db.conn.Query(`
		SELECT source, raw, target, syntax, external, resolved
		FROM links WHERE resolved = 0 AND external = 0
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("index: broken links: %w", err)
	}
	defer rows.Close()

	var out []models.LinkEdge
	for rows.Next() {
		var l models.LinkEdge
		if err := rows.Scan(&l.Source, &l.Raw, &l.Target, &l.Syntax, &l.External, &l.Resolved); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Backlinks returns the distinct notes whose links resolved to target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT source FROM links
		WHERE target = ? AND resolved = 1
		ORDER BY source
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
