package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"biosfinder/internal/logging"
)

const (
	defaultFetchTimeout = 2 * time.Minute
	maxDATBytes         = 64 << 20
)

// Fetcher keeps a local copy of the remote DAT current.
type Fetcher struct {
	URL    string
	Path   string
	MaxAge time.Duration
	Client *http.Client
	Logger *slog.Logger
	now    func() time.Time
}

// NewFetcher creates a fetcher that stores the DAT downloaded from url at path.
// A zero maxAge means an existing file is never considered stale.
func NewFetcher(url, path string, maxAge, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		URL:    strings.TrimSpace(url),
		Path:   strings.TrimSpace(path),
		MaxAge: maxAge,
		Client: &http.Client{Timeout: timeout},
		Logger: logging.NewComponentLogger(logger, "catalog"),
		now:    time.Now,
	}
}

// Ensure makes sure a usable DAT exists at Path. It downloads when the file is
// missing, stale, or force is set. A failed refresh of an existing file keeps
// the old copy and only logs a warning. It reports whether a download happened.
func (f *Fetcher) Ensure(ctx context.Context, force bool) (bool, error) {
	logger := logging.WithContext(ctx, f.Logger)
	info, err := os.Stat(f.Path)
	switch {
	case err == nil && info.IsDir():
		return false, fmt.Errorf("catalog path %s is a directory", f.Path)
	case err == nil:
		if !force && !f.stale(info) {
			logger.Debug("catalog is current", logging.String("path", f.Path))
			return false, nil
		}
		if err := f.Download(ctx); err != nil {
			logging.WarnWithContext(logger, "catalog refresh failed; using existing copy", "catalog_refresh_failed",
				logging.String("path", f.Path),
				logging.String("url", f.URL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network access or set catalog.url"),
				logging.String(logging.FieldImpact, "newly published BIOS checksums will not be recognized"),
			)
			return false, nil
		}
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		if err := f.Download(ctx); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("stat catalog: %w", err)
	}
}

func (f *Fetcher) stale(info fs.FileInfo) bool {
	if f.MaxAge <= 0 {
		return false
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return now().Sub(info.ModTime()) > f.MaxAge
}

// Download fetches the DAT, checks that it parses into at least one entry, and
// replaces Path atomically.
func (f *Fetcher) Download(ctx context.Context) error {
	logger := logging.WithContext(ctx, f.Logger)
	if f.URL == "" {
		return errors.New("download catalog: no url configured")
	}
	logger.Info("downloading catalog", logging.String("url", f.URL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return fmt.Errorf("download catalog: %w", err)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download catalog: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDATBytes+1))
	if err != nil {
		return fmt.Errorf("download catalog: %w", err)
	}
	if len(data) > maxDATBytes {
		return fmt.Errorf("download catalog: response exceeds %d bytes", maxDATBytes)
	}
	entries, err := ParseDAT(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse downloaded catalog: %w", err)
	}
	if len(entries) == 0 {
		return errors.New("parse downloaded catalog: no rom entries")
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	tempPath := f.Path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write catalog temp file: %w", err)
	}
	if err := os.Rename(tempPath, f.Path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replace catalog file: %w", err)
	}

	logger.Info("catalog downloaded",
		logging.String("path", f.Path),
		logging.Int("bytes", len(data)),
		logging.Int("entries", len(entries)),
	)
	return nil
}
