package digest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biosfinder/internal/digest"
)

func TestKnownChecksums(t *testing.T) {
	data := []byte("hello")
	cases := map[digest.Algorithm]string{
		digest.MD5:   "5d41402abc4b2a76b9719d911017c592",
		digest.SHA1:  "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
		digest.CRC32: "3610a686",
	}
	for alg, want := range cases {
		if got := digest.Bytes(alg, data); got != want {
			t.Fatalf("%s: got %s want %s", alg, got, want)
		}
		sum, n, err := digest.Reader(alg, strings.NewReader("hello"))
		if err != nil || sum != want || n != 5 {
			t.Fatalf("%s: Reader returned %s %d %v", alg, sum, n, err)
		}
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scph1001.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum, n, err := digest.File(digest.MD5, path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if sum != "5d41402abc4b2a76b9719d911017c592" || n != 5 {
		t.Fatalf("unexpected result %s %d", sum, n)
	}
	if _, _, err := digest.File(digest.MD5, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse(t *testing.T) {
	for input, want := range map[string]digest.Algorithm{"": digest.MD5, "MD5": digest.MD5, " sha1 ": digest.SHA1, "crc32": digest.CRC32} {
		got, err := digest.Parse(input)
		if err != nil || got != want {
			t.Fatalf("Parse(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := digest.Parse("sha256"); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestNormalize(t *testing.T) {
	if got := digest.Normalize("  ABCdef01 "); got != "abcdef01" {
		t.Fatalf("unexpected normalized value %q", got)
	}
}
