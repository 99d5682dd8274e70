package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biosfinder/internal/catalog"
	"biosfinder/internal/config"
	"biosfinder/internal/digest"
)

// Entry builds a catalog entry whose checksums describe data.
func Entry(group, name string, data []byte) catalog.Entry {
	return catalog.Entry{
		Group: group,
		Name:  name,
		Size:  int64(len(data)),
		MD5:   digest.Bytes(digest.MD5, data),
		SHA1:  digest.Bytes(digest.SHA1, data),
		CRC32: digest.Bytes(digest.CRC32, data),
	}
}

// NewCatalog builds an MD5-keyed catalog or fails the test.
func NewCatalog(t testing.TB, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.New(entries, digest.MD5)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

// DAT renders entries in clrmamepro format, one game block per group in
// first-seen order.
func DAT(entries ...catalog.Entry) string {
	var order []string
	byGroup := make(map[string][]catalog.Entry)
	for _, e := range entries {
		if _, ok := byGroup[e.Group]; !ok {
			order = append(order, e.Group)
		}
		byGroup[e.Group] = append(byGroup[e.Group], e)
	}

	var b strings.Builder
	b.WriteString("clrmamepro (\n\tname \"System\"\n\tdescription \"System\"\n)\n\n")
	for _, group := range order {
		fmt.Fprintf(&b, "game (\n\tname %q\n\tcomment %q\n", group, group)
		for _, e := range byGroup[group] {
			fmt.Fprintf(&b, "\trom ( name %s size %d crc %s md5 %s sha1 %s )\n",
				datName(e.Name), e.Size, e.CRC32, e.MD5, e.SHA1)
		}
		b.WriteString(")\n\n")
	}
	return b.String()
}

func datName(name string) string {
	if strings.ContainsAny(name, " ()\"") {
		return fmt.Sprintf("%q", name)
	}
	return name
}

// WriteDAT writes entries as a DAT file at path.
func WriteDAT(t testing.TB, path string, entries ...catalog.Entry) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(DAT(entries...)), 0o644); err != nil {
		t.Fatalf("write dat %s: %v", path, err)
	}
}

// MustOpenStore opens the configured catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.OpenStore(context.Background(), cfg.Paths.CatalogDB)
	if err != nil {
		t.Fatalf("catalog.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
