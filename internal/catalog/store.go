package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"biosfinder/internal/digest"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Old databases are
// rejected; re-importing the DAT recreates them.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists an imported catalog in SQLite so runs do not need to re-parse
// the DAT. The pipeline only reads from it.
type Store struct {
	db   *sql.DB
	path string
}

// GroupCount is the number of catalog rows recorded for one system.
type GroupCount struct {
	Group string
	Count int
	Bytes int64
}

// Meta describes the most recent import.
type Meta struct {
	Source     string
	ImportedAt time.Time
	Rows       int
}

// OpenStore opens or creates the catalog database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s and re-import)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Import replaces the stored catalog with entries, keeping their order.
func (s *Store) Import(ctx context.Context, entries []Entry, source string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_entries"); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_entries (row_id, system, name, size, md5, sha1, crc32) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		if _, err := stmt.ExecContext(ctx, i+1,
			entry.Group,
			entry.Name,
			entry.Size,
			digest.Normalize(entry.MD5),
			digest.Normalize(entry.SHA1),
			digest.Normalize(entry.CRC32),
		); err != nil {
			return 0, fmt.Errorf("insert %s/%s: %w", entry.Group, entry.Name, err)
		}
	}

	meta := map[string]string{
		"source":      source,
		"imported_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value); err != nil {
			return 0, fmt.Errorf("record %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(entries), nil
}

// Entries returns all stored rows in import order.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT system, name, size, md5, sha1, crc32 FROM catalog_entries ORDER BY row_id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Group, &e.Name, &e.Size, &e.MD5, &e.SHA1, &e.CRC32); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Load reads the stored rows into an immutable catalog keyed by alg.
func (s *Store) Load(ctx context.Context, alg digest.Algorithm) (*Catalog, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return New(entries, alg)
}

// Groups returns per-system row counts ordered by system name.
func (s *Store) Groups(ctx context.Context) ([]GroupCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT system, COUNT(1), COALESCE(SUM(size), 0) FROM catalog_entries GROUP BY system ORDER BY system`)
	if err != nil {
		return nil, fmt.Errorf("query systems: %w", err)
	}
	defer rows.Close()

	var out []GroupCount
	for rows.Next() {
		var gc GroupCount
		if err := rows.Scan(&gc.Group, &gc.Count, &gc.Bytes); err != nil {
			return nil, fmt.Errorf("scan system row: %w", err)
		}
		out = append(out, gc)
	}
	return out, rows.Err()
}

// Meta returns information about the last import. An empty store returns a
// zero Meta.
func (s *Store) Meta(ctx context.Context) (Meta, error) {
	var meta Meta
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM catalog_entries").Scan(&meta.Rows); err != nil {
		return Meta{}, fmt.Errorf("count catalog rows: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM catalog_meta")
	if err != nil {
		return Meta{}, fmt.Errorf("query catalog meta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, fmt.Errorf("scan catalog meta: %w", err)
		}
		switch key {
		case "source":
			meta.Source = value
		case "imported_at":
			if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
				meta.ImportedAt = ts
			}
		}
	}
	return meta, rows.Err()
}
