package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"biosfinder/internal/digest"
)

// LoadDAT parses the DAT file at path into a catalog keyed by alg.
func LoadDAT(path string, alg digest.Algorithm) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	entries, err := ParseDAT(file)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(entries, alg)
}

// Load reads a catalog from path, choosing the reader by extension: .db,
// .sqlite, and .sqlite3 are catalog databases, anything else is a DAT.
func Load(ctx context.Context, path string, alg digest.Algorithm) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open catalog db: %w", err)
		}
		store, err := OpenStore(ctx, path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(ctx, alg)
	default:
		return LoadDAT(path, alg)
	}
}
