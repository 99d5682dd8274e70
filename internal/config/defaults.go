package config

const (
	defaultConfigPath          = "~/.config/biosfinder/config.toml"
	defaultCatalogPath         = "~/.local/share/biosfinder/System.dat"
	defaultCatalogDB           = "~/.local/share/biosfinder/catalog.db"
	defaultLogDir              = "~/.local/share/biosfinder/logs"
	defaultCatalogURL          = "https://raw.githubusercontent.com/libretro/libretro-database/master/dat/System.dat"
	defaultCatalogMaxAgeHours  = 7 * 24
	defaultCatalogTimeout      = 120
	defaultScanGlob            = "*"
	defaultScanMaxBytes        = 15 * 1024 * 1024
	defaultScanAlgorithm       = "md5"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	catalogURLEnv              = "BIOSFINDER_CATALOG_URL"
	outputDirEnv               = "BIOSFINDER_OUTPUT_DIR"
	defaultPlacementVerify     = true
	defaultPlacementProgress   = true
	defaultPlacementOverwrites = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogPath: defaultCatalogPath,
			CatalogDB:   defaultCatalogDB,
			LogDir:      defaultLogDir,
		},
		Catalog: Catalog{
			URL:            defaultCatalogURL,
			MaxAgeHours:    defaultCatalogMaxAgeHours,
			TimeoutSeconds: defaultCatalogTimeout,
		},
		Scan: Scan{
			Glob:      defaultScanGlob,
			MaxBytes:  defaultScanMaxBytes,
			Algorithm: defaultScanAlgorithm,
		},
		Placement: Placement{
			Overwrite:      defaultPlacementOverwrites,
			VerifyExisting: defaultPlacementVerify,
			Progress:       defaultPlacementProgress,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
