// Package main hosts the biosfinder CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration lazily, builds the logger, and
// hands explicit options to the internal packages: organize runs the
// hash/match/place pipeline, catalog manages the reference DAT and its SQLite
// import, and config scaffolds a sample file.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
