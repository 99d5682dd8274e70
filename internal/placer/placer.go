package placer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"

	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/logging"
	"biosfinder/internal/matcher"
)

const stage = "place"

// LockFileName is created in the output root while a run is placing files.
const LockFileName = ".biosfinder.lock"

// Action describes what happened to one match.
type Action string

const (
	ActionCopied      Action = "copied"
	ActionOverwritten Action = "overwritten"
	ActionSkipped     Action = "skipped"
	ActionSameFile    Action = "same_file"
	ActionConflict    Action = "conflict"
)

// Outcome is the placement result for one match.
type Outcome struct {
	Row         int    `json:"row"`
	Group       string `json:"group"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Action      Action `json:"action"`
}

// Result totals a placement run.
type Result struct {
	Copied      int       `json:"copied"`
	Overwritten int       `json:"overwritten"`
	Skipped     int       `json:"skipped"`
	SameFile    int       `json:"same_file"`
	Conflicts   []string  `json:"conflicts,omitempty"`
	BytesCopied int64     `json:"bytes_copied"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Options configures a Placer.
type Options struct {
	OutputRoot string
	// Overwrite replaces existing destinations instead of skipping them.
	Overwrite bool
	// VerifyExisting re-hashes skipped destinations and reports the ones
	// whose content no longer matches.
	VerifyExisting bool
	Algorithm      digest.Algorithm
	// Progress receives a byte progress bar when non-nil.
	Progress io.Writer
	Logger   *slog.Logger
}

// Placer copies matched files into the output tree.
type Placer struct {
	opts   Options
	logger *slog.Logger
	statfs statfsFunc
}

// New creates a Placer.
func New(opts Options) *Placer {
	if opts.Algorithm == "" {
		opts.Algorithm = digest.MD5
	}
	return &Placer{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "placer"),
		statfs: realStatfs,
	}
}

type plannedMatch struct {
	match  matcher.Match
	dst    string
	exists bool
	isDir  bool
	same   bool
}

// Place copies every match to OutputRoot/<name>. Existing destinations are
// left alone unless Overwrite is set, and a source is never copied onto
// itself. Placement runs sequentially under an exclusive lock on the output
// root.
func (p *Placer) Place(ctx context.Context, set matcher.MatchSet) (Result, error) {
	result := Result{Outcomes: make([]Outcome, 0, set.Len())}
	logger := logging.WithContext(ctx, p.logger)

	root, err := filepath.Abs(strings.TrimSpace(p.opts.OutputRoot))
	if err != nil || strings.TrimSpace(p.opts.OutputRoot) == "" {
		return result, faults.Wrap(faults.ErrConfiguration, stage, "resolve output root", p.opts.OutputRoot, err)
	}
	if set.Len() == 0 {
		return result, nil
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return result, faults.Wrap(faults.ErrConfiguration, stage, "create output root", root, err)
	}
	if err := checkWritable(root); err != nil {
		return result, faults.Wrap(faults.ErrConfiguration, stage, "check output root", root, err)
	}

	lock := flock.New(filepath.Join(root, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return result, faults.Wrap(faults.ErrIO, stage, "acquire lock", root, err)
	}
	if !locked {
		return result, faults.Wrap(faults.ErrConfiguration, stage, "acquire lock",
			"another biosfinder run is placing into "+root, nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	plan, needed, err := p.plan(root, set)
	if err != nil {
		return result, err
	}
	if err := p.checkSpace(root, needed); err != nil {
		return result, err
	}

	var bar *progressbar.ProgressBar
	if p.opts.Progress != nil && needed > 0 {
		bar = progressbar.NewOptions64(needed,
			progressbar.OptionSetWriter(p.opts.Progress),
			progressbar.OptionSetDescription("placing"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
	}

	for _, item := range plan {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("place: %w", err)
		}
		outcome := Outcome{
			Row:         item.match.Row,
			Group:       item.match.Entry.Group,
			Source:      item.match.Source.Path,
			Destination: item.dst,
		}
		action, written, err := p.placeOne(logger, item)
		if err != nil {
			return result, err
		}
		outcome.Action = action
		result.Outcomes = append(result.Outcomes, outcome)
		switch action {
		case ActionCopied:
			result.Copied++
		case ActionOverwritten:
			result.Overwritten++
		case ActionSkipped:
			result.Skipped++
		case ActionSameFile:
			result.SameFile++
		case ActionConflict:
			result.Conflicts = append(result.Conflicts, item.dst)
		}
		result.BytesCopied += written
		if bar != nil && written > 0 {
			_ = bar.Add64(written)
		}
	}

	logger.Info("placement complete",
		logging.String("output_root", root),
		logging.Int("copied", result.Copied),
		logging.Int("overwritten", result.Overwritten),
		logging.Int("skipped", result.Skipped),
		logging.Int("same_file", result.SameFile),
		logging.Int("conflicts", len(result.Conflicts)),
		logging.Int64("bytes_copied", result.BytesCopied),
	)
	return result, nil
}

// plan resolves destinations and totals the bytes that will be written.
func (p *Placer) plan(root string, set matcher.MatchSet) ([]plannedMatch, int64, error) {
	plan := make([]plannedMatch, 0, set.Len())
	var needed int64
	for _, m := range set.Matches {
		dst, err := destination(root, m.Entry.Name)
		if err != nil {
			return nil, 0, err
		}
		item := plannedMatch{match: m, dst: dst}
		src, err := filepath.Abs(m.Source.Path)
		if err != nil {
			return nil, 0, faults.Wrap(faults.ErrIO, stage, "resolve source", m.Source.Path, err)
		}
		if info, err := os.Stat(dst); err == nil {
			item.exists = true
			item.isDir = info.IsDir()
			if src == dst {
				item.same = true
			} else if srcInfo, err := os.Stat(src); err == nil && os.SameFile(srcInfo, info) {
				item.same = true
			}
		} else if src == dst {
			item.same = true
		}
		if !item.same && !item.isDir && (!item.exists || p.opts.Overwrite) {
			needed += m.Source.Size
		}
		plan = append(plan, item)
	}
	return plan, needed, nil
}

// destination joins name onto root and rejects names that leave it.
func destination(root, name string) (string, error) {
	dst := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, dst)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", faults.Wrap(faults.ErrInvariant, stage, "resolve destination",
			fmt.Sprintf("%q escapes output root", name), err)
	}
	return dst, nil
}

func (p *Placer) placeOne(logger *slog.Logger, item plannedMatch) (Action, int64, error) {
	m := item.match
	attrs := []logging.Attr{
		logging.String("source", m.Source.Path),
		logging.String("destination", item.dst),
		logging.String("system", m.Entry.Group),
	}

	switch {
	case item.same:
		logger.Debug("source already in place", logging.Args(attrs...)...)
		return ActionSameFile, 0, nil
	case item.isDir:
		logging.WarnWithContext(logger, "destination is a directory", "destination_is_directory",
			append(attrs,
				logging.String(logging.FieldErrorHint, "move the directory out of the output root"),
				logging.String(logging.FieldImpact, "file was not placed"),
			)...)
		return ActionConflict, 0, nil
	case item.exists && !p.opts.Overwrite:
		if p.opts.VerifyExisting {
			sum, _, err := digest.File(p.opts.Algorithm, item.dst)
			if err != nil || sum != m.Source.Checksum {
				conflict := append(attrs,
					logging.String("expected_checksum", m.Source.Checksum),
					logging.String("actual_checksum", sum),
					logging.String(logging.FieldErrorHint, "rerun with --overwrite to replace it"),
					logging.String(logging.FieldImpact, "existing file was left in place"),
				)
				if err != nil {
					conflict = append(conflict, logging.Error(err))
				}
				logging.WarnWithContext(logger, "existing destination differs from catalog", "destination_modified", conflict...)
				return ActionConflict, 0, nil
			}
		}
		logger.Debug("destination exists; skipping", logging.Args(attrs...)...)
		return ActionSkipped, 0, nil
	}

	written, err := copyFile(m.Source.Path, item.dst, p.opts.Algorithm, m.Source.Checksum)
	if err != nil {
		return "", 0, faults.Wrap(faults.ErrIO, stage, "copy", m.Source.Path+" -> "+item.dst, err)
	}
	if item.exists {
		logger.Info("replaced destination", logging.Args(append(attrs, logging.Int64("bytes", written))...)...)
		return ActionOverwritten, written, nil
	}
	logger.Info("copied", logging.Args(append(attrs, logging.Int64("bytes", written))...)...)
	return ActionCopied, written, nil
}
