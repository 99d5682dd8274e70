package testsupport

import (
	"path/filepath"
	"testing"

	"biosfinder/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Progress bars are disabled and the catalog URL points nowhere routable.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog", "System.dat")
	cfgVal.Paths.CatalogDB = filepath.Join(base, "catalog", "catalog.db")
	cfgVal.Paths.OutputDir = filepath.Join(base, "system")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.URL = "http://127.0.0.1:0/System.dat"
	cfgVal.Placement.Progress = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCatalogURL overrides the remote catalog location.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.URL = url
	}
}

// WithGlob overrides the scan pattern.
func WithGlob(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Glob = pattern
	}
}

// WithOverwrite enables replacing existing destinations.
func WithOverwrite() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Placement.Overwrite = true
	}
}

// WithMaxBytes overrides the candidate size ceiling.
func WithMaxBytes(n int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.MaxBytes = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
