// Package catalog models the reference table of known BIOS files.
//
// A Catalog is an immutable slice of entries (system, destination name,
// checksums) with a checksum index mapping each key to the rows that carry it.
// Rows may share checksums: the same physical file is often required under
// several names by different emulator cores.
//
// Catalogs come from clrmamepro DAT files (libretro-database System.dat),
// either parsed directly or imported once into a SQLite store. Fetcher keeps a
// local DAT copy in sync with a remote URL.
package catalog
