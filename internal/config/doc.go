// Package config loads, normalizes, and validates biosfinder configuration.
//
// It reads TOML from the user config directory or a project-local
// biosfinder.toml, fills defaults, expands ~ in paths, applies environment
// overrides, and exposes typed sections for catalog retrieval, scanning,
// placement, and logging. The package also embeds a sample configuration used
// by `biosfinder config init`.
//
// Values that used to be discovered at process start (such as the frontend's
// system directory) are plain fields here and are passed explicitly into the
// pipeline.
package config
