package placer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/logging"
)

// statfsFunc returns free bytes for the filesystem holding path.
type statfsFunc func(path string) (uint64, error)

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func checkWritable(dir string) error {
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("insufficient permissions: %w", err)
	}
	return nil
}

func (p *Placer) checkSpace(root string, needed int64) error {
	if needed <= 0 || p.statfs == nil {
		return nil
	}
	free, err := p.statfs(root)
	if err != nil {
		p.logger.Debug("free space check unavailable", logging.String("path", root), logging.Error(err))
		return nil
	}
	if uint64(needed) > free {
		return faults.Wrap(faults.ErrConfiguration, stage, "check free space",
			fmt.Sprintf("%s needs %s but only %s is free", root,
				humanize.IBytes(uint64(needed)), humanize.IBytes(free)), nil)
	}
	return nil
}

// copyFile copies src to dst through a temp file in the destination
// directory, verifying size and checksum before the rename. The written
// content must hash to expected.
func copyFile(src, dst string, alg digest.Algorithm, expected string) (int64, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	out, err := os.CreateTemp(dir, ".biosfinder-*.tmp")
	if err != nil {
		return 0, err
	}
	tmp := out.Name()
	committed := false
	defer func() {
		_ = out.Close()
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	// Hash source while reading, hash destination while writing
	srcHasher := alg.New()
	dstHasher := alg.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return 0, err
	}
	if err := out.Sync(); err != nil {
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	if written != srcSize {
		return 0, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return 0, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	if got := hex.EncodeToString(dstHasher.Sum(nil)); expected != "" && got != expected {
		return 0, fmt.Errorf("source changed since hashing: expected %s, got %s", expected, got)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return 0, err
	}
	committed = true
	return written, nil
}
