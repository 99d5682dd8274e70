// Package organize runs the full pipeline: hash the search root, match
// against the catalog, place matches into the output root, and summarize.
package organize

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"biosfinder/internal/catalog"
	"biosfinder/internal/faults"
	"biosfinder/internal/hasher"
	"biosfinder/internal/logging"
	"biosfinder/internal/matcher"
	"biosfinder/internal/placer"
	"biosfinder/internal/report"
)

// Options holds everything a run needs. Nothing is read from globals.
type Options struct {
	SearchRoot string
	OutputRoot string
	Catalog    *catalog.Catalog

	Pattern  string
	MaxBytes int64
	Workers  int

	Overwrite      bool
	VerifyExisting bool
	Progress       io.Writer

	Logger *slog.Logger
	// RunID is generated when empty.
	RunID string
}

// Run executes one organize invocation. Hashing finishes completely before
// matching starts; matching, placement and reporting are sequential.
func Run(ctx context.Context, opts Options) (report.Summary, error) {
	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = faults.WithRunID(ctx, runID)
	logger := logging.NewComponentLogger(opts.Logger, "organize")

	if opts.Catalog == nil || opts.Catalog.Len() == 0 {
		return report.Summary{RunID: runID}, faults.Wrap(faults.ErrConfiguration, "organize", "load catalog", "catalog is empty", nil)
	}
	if strings.TrimSpace(opts.OutputRoot) == "" {
		return report.Summary{RunID: runID}, faults.Wrap(faults.ErrConfiguration, "organize", "validate output root", "output directory is empty", nil)
	}

	started := time.Now()
	logging.WithContext(ctx, logger).Info("organize started",
		logging.String("search_root", opts.SearchRoot),
		logging.String("output_root", opts.OutputRoot),
		logging.Int("catalog_rows", opts.Catalog.Len()),
		logging.String("algorithm", opts.Catalog.Algorithm().String()),
	)

	hashCtx := faults.WithStage(ctx, "hash")
	candidates, stats, err := hasher.Scan(hashCtx, opts.SearchRoot, hasher.Options{
		Pattern:   opts.Pattern,
		MaxBytes:  opts.MaxBytes,
		Workers:   opts.Workers,
		Algorithm: opts.Catalog.Algorithm(),
		Logger:    opts.Logger,
	})
	if err != nil {
		return report.Summary{RunID: runID, Scan: stats}, logFailure(hashCtx, logger, err)
	}

	matchCtx := faults.WithStage(ctx, "match")
	set, err := matcher.Resolve(candidates, opts.Catalog)
	if err != nil {
		return report.Summary{RunID: runID, Scan: stats}, logFailure(matchCtx, logger, err)
	}
	matchLogger := logging.WithContext(matchCtx, logger)
	matchLogger.Info("matching complete",
		logging.Int("candidates", len(candidates)),
		logging.Int("matches", set.Len()),
		logging.Int("ambiguous", len(set.Ambiguous)),
	)
	for _, amb := range set.Ambiguous {
		attrs := append(logging.DecisionAttrs("candidate_selection", amb.Paths[0], "first in traversal order"),
			logging.String("name", amb.Name),
			logging.Strings("paths", amb.Paths),
		)
		matchLogger.Debug("several files match one catalog entry", logging.Args(attrs...)...)
	}

	placeCtx := faults.WithStage(ctx, "place")
	result, err := placer.New(placer.Options{
		OutputRoot:     opts.OutputRoot,
		Overwrite:      opts.Overwrite,
		VerifyExisting: opts.VerifyExisting,
		Algorithm:      opts.Catalog.Algorithm(),
		Progress:       opts.Progress,
		Logger:         opts.Logger,
	}).Place(placeCtx, set)
	summary := report.Build(set, result, stats)
	summary.RunID = runID
	if err != nil {
		return summary, logFailure(placeCtx, logger, err)
	}
	summary.SearchRoot = absOrSelf(opts.SearchRoot)
	summary.OutputRoot = absOrSelf(opts.OutputRoot)

	logging.WithContext(ctx, logger).Info("organize finished",
		logging.Int("matched", summary.Matched),
		logging.Int("systems", summary.Systems),
		logging.Int("copied", summary.Copied),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

// logFailure records a failed stage and returns err unchanged.
func logFailure(ctx context.Context, logger *slog.Logger, err error) error {
	logging.ErrorWithContext(logging.WithContext(ctx, logger), "organize failed", "organize_failed",
		logging.String("error_kind", faults.Kind(err)),
		logging.Error(err),
	)
	return err
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
