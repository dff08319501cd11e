package index

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Stem      string // filename without directory or .md extension
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertNote inserts or replaces a note, its FTS entry, and its outgoing
// links within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (path, stem, title, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			stem       = excluded.stem,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Path, n.Stem, n.Title, n.Checksum, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.Path, n.Title, body); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry, and its outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if
// not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
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

// ResolveTitle resolves a wikilink-style target to a vault-relative path.
// A target matches on exact path (with or without .md), filename stem, or
// note title. Zero matches yield apperr.ErrNotFound; more than one yields
// apperr.ErrAmbiguous — a silent pick is never made.
func (db *DB) ResolveTitle(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("index: resolve %q: %w", target, apperr.ErrNotFound)
	}

	// Exact path match first: "folder/note.md" or "folder/note".
	candidates := []string{target}
	if !strings.HasSuffix(target, ".md") {
		candidates = append(candidates, target+".md")
	}
	for _, c := range candidates {
		var p string
		if err := db.conn.QueryRow(`SELECT path FROM notes WHERE path = ?`, c).Scan(&p); err == nil {
			return p, nil
		}
	}

	stem := strings.TrimSuffix(path.Base(target), ".md")
	rows, err := db.conn.Query(`SELECT path FROM notes WHERE stem = ? OR title = ?`, stem, target)
	if err != nil {
		return "", fmt.Errorf("index: resolve %q: %w", target, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return "", err
		}
		matches = append(matches, p)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("index: resolve %q: %w", target, apperr.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("index: resolve %q matches %d notes: %w", target, len(matches), apperr.ErrAmbiguous)
	}
}

// Backlinks returns all note paths that link to the given target. Links
// store raw wikilink targets, which name a note by path, bare path, stem,
// or title; when the target is an indexed note, all of its identifiers
// match, the same surface ResolveTitle accepts.
func (db *DB) Backlinks(target string) ([]string, error) {
	target = strings.TrimSpace(target)
	idents := map[string]struct{}{target: {}}

	var p, stem, title string
	err := db.conn.QueryRow(`SELECT path, stem, title FROM notes WHERE path = ? OR path = ?`,
		target, target+".md").Scan(&p, &stem, &title)
	if err == nil {
		idents[p] = struct{}{}
		idents[strings.TrimSuffix(p, ".md")] = struct{}{}
		idents[stem] = struct{}{}
		if title != "" {
			idents[title] = struct{}{}
		}
	}

	marks := make([]string, 0, len(idents))
	args := make([]any, 0, len(idents))
	for id := range idents {
		marks = append(marks, "?")
		args = append(args, id)
	}

	rows, err := db.conn.Query(
		`SELECT DISTINCT source FROM links WHERE target IN (`+strings.Join(marks, ", ")+`) ORDER BY source`,
		args...)
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
