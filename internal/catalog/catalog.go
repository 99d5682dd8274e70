package catalog

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"biosfinder/internal/digest"
)

// Entry is one reference file: the system it belongs to, the path the
// frontend expects it under, and the checksums that identify its content.
type Entry struct {
	Group string
	Name  string
	Size  int64
	MD5   string
	SHA1  string
	CRC32 string
}

// Checksum returns the entry's checksum for the given algorithm, or "" when
// the catalog did not record one.
func (e Entry) Checksum(alg digest.Algorithm) string {
	switch alg {
	case digest.SHA1:
		return e.SHA1
	case digest.CRC32:
		return e.CRC32
	default:
		return e.MD5
	}
}

// Catalog is an immutable, indexed table of entries. Several rows may share a
// checksum; each row is matched independently.
type Catalog struct {
	entries []Entry
	alg     digest.Algorithm
	index   map[string][]int
}

// New builds a catalog keyed by alg. Names are cleaned to slash form and
// checksums normalized. Rows without a checksum for alg stay in the table but
// can never match.
func New(entries []Entry, alg digest.Algorithm) (*Catalog, error) {
	if alg == "" {
		alg = digest.MD5
	}
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		alg:     alg,
		index:   make(map[string][]int, len(entries)),
	}
	for i, entry := range entries {
		entry.Group = strings.TrimSpace(entry.Group)
		name, err := CleanName(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d (%s): %w", i, entry.Group, err)
		}
		entry.Name = name
		entry.MD5 = digest.Normalize(entry.MD5)
		entry.SHA1 = digest.Normalize(entry.SHA1)
		entry.CRC32 = digest.Normalize(entry.CRC32)

		row := len(c.entries)
		c.entries = append(c.entries, entry)
		if key := entry.Checksum(alg); key != "" {
			c.index[key] = append(c.index[key], row)
		}
	}
	return c, nil
}

// CleanName converts a catalog file name into a clean relative slash path and
// rejects names that would escape the output root.
func CleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if trimmed == "" {
		return "", errors.New("empty file name")
	}
	cleaned := path.Clean(trimmed)
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "." {
		return "", fmt.Errorf("file name %q escapes the output directory", name)
	}
	return cleaned, nil
}

// Algorithm reports which checksum the catalog is keyed by.
func (c *Catalog) Algorithm() digest.Algorithm { return c.alg }

// Len returns the number of rows.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entry returns the row at index i.
func (c *Catalog) Entry(i int) Entry { return c.entries[i] }

// Key returns the match key of row i.
func (c *Catalog) Key(i int) string { return c.entries[i].Checksum(c.alg) }

// Entries returns a copy of all rows in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Rows returns the row indices whose key equals checksum, in catalog order.
func (c *Catalog) Rows(checksum string) []int {
	if c == nil {
		return nil
	}
	return c.index[digest.Normalize(checksum)]
}

// Groups returns the distinct group names in sorted order.
func (c *Catalog) Groups() []string {
	seen := make(map[string]struct{})
	for _, entry := range c.entries {
		seen[entry.Group] = struct{}{}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Filter returns a catalog restricted to the named groups. Group names match
// case-insensitively; an unknown name is an error so typos do not silently
// produce an empty run. With no names the receiver is returned unchanged.
func (c *Catalog) Filter(groups ...string) (*Catalog, error) {
	if len(groups) == 0 {
		return c, nil
	}
	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[strings.ToLower(strings.TrimSpace(g))] = false
	}
	subset := make([]Entry, 0)
	for _, entry := range c.entries {
		key := strings.ToLower(entry.Group)
		if _, ok := wanted[key]; ok {
			wanted[key] = true
			subset = append(subset, entry)
		}
	}
	var missing []string
	for g, found := range wanted {
		if !found {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown system(s): %s", strings.Join(missing, ", "))
	}
	return New(subset, c.alg)
}
