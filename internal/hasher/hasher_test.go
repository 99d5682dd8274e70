package hasher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/hasher"
	"biosfinder/internal/logging"
	"biosfinder/internal/testsupport"
)

func scan(t *testing.T, root string, opts hasher.Options) ([]hasher.Candidate, hasher.Stats) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	candidates, stats, err := hasher.Scan(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return candidates, stats
}

func TestScanHashesInTraversalOrder(t *testing.T) {
	root := t.TempDir()
	files := []string{"a.bin", "b/c.bin", "b/d/e.bin", "z.bin"}
	for _, name := range files {
		testsupport.WriteBytes(t, filepath.Join(root, name), testsupport.Content(name, 100+len(name)))
	}

	candidates, stats := scan(t, root, hasher.Options{Workers: 4})
	if len(candidates) != len(files) {
		t.Fatalf("expected %d candidates, got %d", len(files), len(candidates))
	}
	for i, name := range files {
		c := candidates[i]
		if c.Path != filepath.Join(root, name) {
			t.Fatalf("candidate %d: expected %s, got %s", i, name, c.Path)
		}
		data := testsupport.Content(name, 100+len(name))
		if c.Checksum != digest.Bytes(digest.MD5, data) {
			t.Fatalf("candidate %s: checksum mismatch", name)
		}
		if c.Size != int64(len(data)) {
			t.Fatalf("candidate %s: expected size %d, got %d", name, len(data), c.Size)
		}
	}
	if stats.Seen != 4 || stats.Hashed != 4 || stats.Unreadable != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestScanSizeCeiling(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "exact.bin"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "over.bin"), 65)

	candidates, stats := scan(t, root, hasher.Options{MaxBytes: 64})
	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != "exact.bin" {
		t.Fatalf("expected only exact.bin, got %+v", candidates)
	}
	if stats.SkippedSize != 1 {
		t.Fatalf("expected one size skip, got %+v", stats)
	}
}

func TestScanDefaultCeiling(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "limit.bin"), hasher.DefaultMaxBytes)
	testsupport.WriteFile(t, filepath.Join(root, "large.bin"), hasher.DefaultMaxBytes+1)

	candidates, stats := scan(t, root, hasher.Options{})
	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != "limit.bin" {
		t.Fatalf("expected only limit.bin, got %+v", candidates)
	}
	if stats.SkippedSize != 1 {
		t.Fatalf("expected one size skip, got %+v", stats)
	}
}

func TestScanPattern(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"bios.bin", "notes.txt", "psx/scph.bin", "psx/readme.txt", "other/x.bin"} {
		testsupport.WriteBytes(t, filepath.Join(root, name), testsupport.Content(name, 16))
	}

	candidates, stats := scan(t, root, hasher.Options{Pattern: "*.bin"})
	if len(candidates) != 3 || stats.SkippedPattern != 2 {
		t.Fatalf("base-name pattern: got %d candidates, stats %+v", len(candidates), stats)
	}

	candidates, _ = scan(t, root, hasher.Options{Pattern: "psx/*"})
	if len(candidates) != 2 {
		t.Fatalf("path pattern: expected 2 candidates, got %+v", candidates)
	}
	for _, c := range candidates {
		if filepath.Base(filepath.Dir(c.Path)) != "psx" {
			t.Fatalf("path pattern matched %s", c.Path)
		}
	}
}

func TestScanRejectsBadPattern(t *testing.T) {
	_, _, err := hasher.Scan(context.Background(), t.TempDir(), hasher.Options{Pattern: "[", Logger: logging.NewNop()})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScanMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, _, err := hasher.Scan(context.Background(), missing, hasher.Options{})
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScanRootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.bin")
	testsupport.WriteFile(t, file, 8)
	_, _, err := hasher.Scan(context.Background(), file, hasher.Options{})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScanEmptyRoot(t *testing.T) {
	candidates, stats := scan(t, t.TempDir(), hasher.Options{})
	if len(candidates) != 0 || stats.Seen != 0 {
		t.Fatalf("expected nothing, got %+v %+v", candidates, stats)
	}
}

func TestScanFollowsFileSymlinksOnly(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	testsupport.WriteBytes(t, filepath.Join(outside, "target.bin"), testsupport.Content("target", 32))
	testsupport.WriteBytes(t, filepath.Join(outside, "dir", "hidden.bin"), testsupport.Content("hidden", 32))
	if err := os.Symlink(filepath.Join(outside, "target.bin"), filepath.Join(root, "link.bin")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "dir"), filepath.Join(root, "linkdir")); err != nil {
		t.Fatalf("symlink dir: %v", err)
	}

	candidates, _ := scan(t, root, hasher.Options{})
	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != "link.bin" {
		t.Fatalf("expected only the file symlink, got %+v", candidates)
	}
	if candidates[0].Checksum != digest.Bytes(digest.MD5, testsupport.Content("target", 32)) {
		t.Fatalf("symlink should hash its target")
	}
}

func TestScanSymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	data := testsupport.Content("via-link", 48)
	testsupport.WriteBytes(t, filepath.Join(target, "sub", "a.bin"), data)
	link := filepath.Join(t.TempDir(), "roms")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	direct, _ := scan(t, target, hasher.Options{})
	viaLink, stats := scan(t, link, hasher.Options{})
	if len(viaLink) != len(direct) || stats.Seen != 1 {
		t.Fatalf("symlinked root: expected %d candidates, got %d (%+v)", len(direct), len(viaLink), stats)
	}
	if viaLink[0].Checksum != digest.Bytes(digest.MD5, data) {
		t.Fatalf("symlinked root: checksum mismatch")
	}
	if viaLink[0].Path != direct[0].Path {
		t.Fatalf("expected resolved path %s, got %s", direct[0].Path, viaLink[0].Path)
	}
}

func TestScanUnreadableFileIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	testsupport.WriteBytes(t, filepath.Join(root, "ok.bin"), testsupport.Content("ok", 16))
	locked := filepath.Join(root, "locked.bin")
	testsupport.WriteBytes(t, locked, testsupport.Content("locked", 16))
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	candidates, stats := scan(t, root, hasher.Options{})
	if len(candidates) != 1 || stats.Unreadable != 1 {
		t.Fatalf("expected one candidate and one unreadable, got %+v %+v", candidates, stats)
	}
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.bin"), 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := hasher.Scan(ctx, root, hasher.Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanAlternateAlgorithm(t *testing.T) {
	root := t.TempDir()
	data := testsupport.Content("sha", 40)
	testsupport.WriteBytes(t, filepath.Join(root, "a.bin"), data)
	candidates, _ := scan(t, root, hasher.Options{Algorithm: digest.SHA1})
	if len(candidates) != 1 || candidates[0].Checksum != digest.Bytes(digest.SHA1, data) {
		t.Fatalf("expected sha1 checksum, got %+v", candidates)
	}
}
