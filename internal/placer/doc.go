// Package placer copies matched BIOS files into the frontend's system
// directory.
//
// Placement is idempotent and non-destructive: an existing destination is
// skipped (and optionally re-verified) unless overwrite is requested, and a
// file already at its destination is never copied onto itself. Copies go
// through a temp file in the destination directory and are verified before
// the rename, so a destination is either absent or complete.
//
// A flock on .biosfinder.lock in the output root keeps concurrent runs from
// interleaving. Before copying, the output root is checked for write access
// and for enough free space to hold every pending copy.
package placer
