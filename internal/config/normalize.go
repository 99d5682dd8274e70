package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeScan()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(strings.TrimSpace(c.Paths.CatalogPath)); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogDB) == "" {
		c.Paths.CatalogDB = defaultCatalogDB
	}
	if c.Paths.CatalogDB, err = expandPath(strings.TrimSpace(c.Paths.CatalogDB)); err != nil {
		return fmt.Errorf("paths.catalog_db: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		if value, ok := os.LookupEnv(outputDirEnv); ok {
			c.Paths.OutputDir = value
		}
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	if value, ok := os.LookupEnv(catalogURLEnv); ok && strings.TrimSpace(value) != "" {
		c.Catalog.URL = value
	}
	c.Catalog.URL = strings.TrimSpace(c.Catalog.URL)
	if c.Catalog.URL == "" {
		c.Catalog.URL = defaultCatalogURL
	}
	if c.Catalog.TimeoutSeconds == 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
}

func (c *Config) normalizeScan() {
	c.Scan.Glob = strings.TrimSpace(c.Scan.Glob)
	if c.Scan.Glob == "" {
		c.Scan.Glob = defaultScanGlob
	}
	if c.Scan.MaxBytes == 0 {
		c.Scan.MaxBytes = defaultScanMaxBytes
	}
	c.Scan.Algorithm = strings.ToLower(strings.TrimSpace(c.Scan.Algorithm))
	if c.Scan.Algorithm == "" {
		c.Scan.Algorithm = defaultScanAlgorithm
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
