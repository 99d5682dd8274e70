// Package hasher walks a search root and checksums every candidate file.
package hasher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/logging"
)

// DefaultMaxBytes is the size ceiling above which files are never hashed.
// No catalogued BIOS image is larger.
const DefaultMaxBytes int64 = 15 * 1024 * 1024

const stage = "hash"

// Candidate is a file found under the search root together with its content
// checksum.
type Candidate struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// Stats counts what the walk saw and why files were left out.
type Stats struct {
	Seen           int   `json:"seen"`
	Hashed         int   `json:"hashed"`
	SkippedPattern int   `json:"skipped_pattern"`
	SkippedSize    int   `json:"skipped_size"`
	Unreadable     int   `json:"unreadable"`
	Bytes          int64 `json:"bytes"`
}

// Options controls a scan.
type Options struct {
	// Pattern filters candidates. Without a slash it is matched against the
	// base name; with one it is matched against the trailing path segments.
	Pattern   string
	MaxBytes  int64
	Workers   int
	Algorithm digest.Algorithm
	Logger    *slog.Logger
}

type job struct {
	path string
	size int64
}

type result struct {
	checksum string
	size     int64
	err      error
}

// Scan walks root, hashes every regular file that passes the pattern and size
// filters, and returns the candidates in traversal order. A missing root or a
// root that is not a directory fails before any file is read. Unreadable files
// are logged and skipped.
func Scan(ctx context.Context, root string, opts Options) ([]Candidate, Stats, error) {
	var stats Stats
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "hasher"))

	root, err := validateRoot(root)
	if err != nil {
		return nil, stats, err
	}
	pattern := strings.TrimSpace(opts.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, stats, faults.Wrap(faults.ErrValidation, stage, "parse pattern", pattern, err)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = digest.MD5
	}

	jobs, err := collect(ctx, root, pattern, maxBytes, &stats, logger)
	if err != nil {
		return nil, stats, err
	}
	logger.Debug("walk complete",
		logging.String("root", root),
		logging.Int("files", stats.Seen),
		logging.Int("queued", len(jobs)),
	)

	results := hashAll(ctx, jobs, alg, workerCount(opts.Workers, len(jobs)))
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("hash: %w", err)
	}

	candidates := make([]Candidate, 0, len(jobs))
	for i, res := range results {
		if res.err != nil {
			stats.Unreadable++
			logging.WarnWithContext(logger, "skipping unreadable file", "file_unreadable",
				logging.String("path", jobs[i].path),
				logging.Error(res.err),
				logging.String(logging.FieldErrorHint, "check file permissions"),
				logging.String(logging.FieldImpact, "file was not considered for matching"),
			)
			continue
		}
		stats.Hashed++
		stats.Bytes += res.size
		candidates = append(candidates, Candidate{
			Path:     jobs[i].path,
			Checksum: res.checksum,
			Size:     res.size,
		})
	}

	logger.Info("hashing complete",
		logging.Int("hashed", stats.Hashed),
		logging.Int("skipped_size", stats.SkippedSize),
		logging.Int("skipped_pattern", stats.SkippedPattern),
		logging.Int("unreadable", stats.Unreadable),
		logging.Int64("bytes", stats.Bytes),
	)
	return candidates, stats, nil
}

func validateRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", faults.Wrap(faults.ErrValidation, stage, "validate search root", "search directory is empty", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", faults.Wrap(faults.ErrValidation, stage, "resolve search root", root, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", faults.Wrap(faults.ErrNotFound, stage, "stat search root", abs, err)
	}
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, stage, "stat search root", abs, err)
	}
	if !info.IsDir() {
		return "", faults.Wrap(faults.ErrValidation, stage, "validate search root", abs+" is not a directory", nil)
	}
	// WalkDir does not descend into a symlinked root.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, stage, "resolve search root", abs, err)
	}
	return resolved, nil
}

// collect walks root in lexical order and returns the files to hash.
func collect(ctx context.Context, root, pattern string, maxBytes int64, stats *Stats, logger *slog.Logger) ([]job, error) {
	var jobs []job
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == root {
				return faults.Wrap(faults.ErrIO, stage, "read search root", root, walkErr)
			}
			stats.Unreadable++
			logging.WarnWithContext(logger, "skipping unreadable path", "path_unreadable",
				logging.String("path", p),
				logging.Error(walkErr),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "files below this path were not scanned"),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := regularInfo(p, d)
		if err != nil || info == nil {
			return nil
		}
		stats.Seen++

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if !matchPattern(pattern, filepath.ToSlash(rel)) {
			stats.SkippedPattern++
			return nil
		}
		if info.Size() > maxBytes {
			stats.SkippedSize++
			logger.Debug("skipping oversized file",
				logging.String("path", p),
				logging.Int64("size", info.Size()),
				logging.Int64("max_bytes", maxBytes),
			)
			return nil
		}
		jobs = append(jobs, job{path: p, size: info.Size()})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("hash: %w", ctxErr)
		}
		return nil, err
	}
	return jobs, nil
}

// regularInfo returns file info for regular files, following symlinks that
// resolve to regular files. Anything else yields nil.
func regularInfo(p string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, err
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

// matchPattern matches pattern against as many trailing segments of rel as
// the pattern has.
func matchPattern(pattern, rel string) bool {
	if pattern == "*" {
		return true
	}
	segments := strings.Count(pattern, "/") + 1
	parts := strings.Split(rel, "/")
	if len(parts) < segments {
		return false
	}
	ok, _ := path.Match(pattern, strings.Join(parts[len(parts)-segments:], "/"))
	return ok
}

func workerCount(requested, jobs int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// hashAll checksums every job with a bounded pool. Results are written by
// index so each checksum stays attached to its path.
func hashAll(ctx context.Context, jobs []job, alg digest.Algorithm, workers int) []result {
	results := make([]result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				sum, n, err := digest.File(alg, jobs[i].path)
				results[i] = result{checksum: sum, size: n, err: err}
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()
	return results
}
