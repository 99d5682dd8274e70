package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must be set")
	}
	if strings.TrimSpace(c.Paths.CatalogDB) == "" {
		return errors.New("paths.catalog_db must be set")
	}
	if filepath.Clean(c.Paths.CatalogPath) == filepath.Clean(c.Paths.CatalogDB) {
		return errors.New("paths.catalog_path and paths.catalog_db must differ")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	parsed, err := url.Parse(c.Catalog.URL)
	if err != nil {
		return fmt.Errorf("catalog.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("catalog.url: unsupported scheme %q", parsed.Scheme)
	}
	if c.Catalog.MaxAgeHours < 0 {
		return errors.New("catalog.max_age_hours must be zero or positive")
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return errors.New("catalog.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.MaxBytes <= 0 {
		return errors.New("scan.max_bytes must be positive")
	}
	if c.Scan.Workers < 0 {
		return errors.New("scan.workers must be zero (auto) or positive")
	}
	if _, err := filepath.Match(c.Scan.Glob, ""); err != nil {
		return fmt.Errorf("scan.glob: %w", err)
	}
	switch c.Scan.Algorithm {
	case "md5", "sha1", "crc32":
	default:
		return fmt.Errorf("scan.algorithm: unsupported value %q (expected md5, sha1, or crc32)", c.Scan.Algorithm)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
