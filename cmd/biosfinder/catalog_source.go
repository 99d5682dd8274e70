package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"biosfinder/internal/catalog"
	"biosfinder/internal/config"
	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
)

func newFetcher(cfg *config.Config, logger *slog.Logger) *catalog.Fetcher {
	return catalog.NewFetcher(
		cfg.Catalog.URL,
		cfg.Paths.CatalogPath,
		time.Duration(cfg.Catalog.MaxAgeHours)*time.Hour,
		time.Duration(cfg.Catalog.TimeoutSeconds)*time.Second,
		logger,
	)
}

// loadCatalog resolves the catalog for a run. An explicit path wins, then an
// imported catalog database, then the cached DAT (downloaded when missing or
// stale).
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger, override string, systems []string) (*catalog.Catalog, string, error) {
	alg, err := digest.Parse(cfg.Scan.Algorithm)
	if err != nil {
		return nil, "", faults.Wrap(faults.ErrConfiguration, "catalog", "parse algorithm", "", err)
	}

	var (
		cat    *catalog.Catalog
		source string
	)
	switch {
	case override != "":
		path, err := config.ExpandPath(override)
		if err != nil {
			return nil, "", fmt.Errorf("resolve catalog path: %w", err)
		}
		source = path
		cat, err = catalog.Load(ctx, path, alg)
		if err != nil {
			return nil, source, faults.Wrap(faults.ErrNotFound, "catalog", "load", path, err)
		}
	case fileExists(cfg.Paths.CatalogDB):
		source = cfg.Paths.CatalogDB
		cat, err = catalog.Load(ctx, source, alg)
		if err != nil {
			return nil, source, faults.Wrap(faults.ErrIO, "catalog", "load database", source, err)
		}
	default:
		source = cfg.Paths.CatalogPath
		if _, err := newFetcher(cfg, logger).Ensure(ctx, false); err != nil {
			return nil, source, faults.Wrap(faults.ErrNotFound, "catalog", "fetch", "no local catalog and download failed", err)
		}
		cat, err = catalog.LoadDAT(source, alg)
		if err != nil {
			return nil, source, faults.Wrap(faults.ErrValidation, "catalog", "parse", source, err)
		}
	}

	if cat.Len() == 0 {
		return nil, source, faults.Wrap(faults.ErrValidation, "catalog", "load", source+" has no entries", nil)
	}
	filtered, err := cat.Filter(systems...)
	if err != nil {
		return nil, source, faults.Wrap(faults.ErrValidation, "catalog", "filter systems", "", err)
	}
	return filtered, source, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
