// Package digest computes the content checksums used to compare candidate
// files against catalog entries. Checksums identify content only; none of
// the algorithms here are used for security.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// Algorithm names a supported checksum.
type Algorithm string

const (
	MD5   Algorithm = "md5"
	SHA1  Algorithm = "sha1"
	CRC32 Algorithm = "crc32"
)

// Parse resolves a configured algorithm name. Empty selects MD5.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", MD5:
		return MD5, nil
	case SHA1:
		return SHA1, nil
	case CRC32:
		return CRC32, nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", name)
	}
}

func (a Algorithm) String() string { return string(a) }

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New()
	case CRC32:
		return crc32.NewIEEE()
	default:
		return md5.New()
	}
}

// Normalize lower-cases and trims a hex checksum so catalog values and
// computed values compare equal.
func Normalize(sum string) string {
	return strings.ToLower(strings.TrimSpace(sum))
}

// Reader streams r through the algorithm and returns the hex checksum and
// the number of bytes read.
func Reader(a Algorithm, r io.Reader) (string, int64, error) {
	h := a.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// File checksums the full contents of the file at path.
func File(a Algorithm, path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Reader(a, f)
}

// Bytes checksums an in-memory buffer.
func Bytes(a Algorithm, data []byte) string {
	h := a.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
