package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"biosfinder/internal/config"
	"biosfinder/internal/faults"
	"biosfinder/internal/logging"
	"biosfinder/internal/organize"
	"biosfinder/internal/report"
)

type organizeFlags struct {
	glob      string
	overwrite bool
	systems   []string
	catalog   string
	workers   int
	json      bool
	verbose   bool
	noVerify  bool
}

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var flags organizeFlags

	cmd := &cobra.Command{
		Use:   "organize <search_dir> [output_dir]",
		Short: "Find BIOS files under search_dir and copy them into output_dir",
		Long: `Recursively hash every file under search_dir, match the checksums against the
BIOS catalog, and copy each match into output_dir under the name the emulator
expects. Existing files in output_dir are never modified unless --overwrite is
given. output_dir defaults to paths.output_dir from the configuration.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			searchDir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve search directory: %w", err)
			}
			outputDir := cfg.Paths.OutputDir
			if len(args) == 2 {
				if outputDir, err = config.ExpandPath(args[1]); err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
			}
			if strings.TrimSpace(outputDir) == "" {
				return faults.Wrap(faults.ErrConfiguration, "organize", "resolve output directory",
					"pass output_dir or set paths.output_dir", nil)
			}

			cat, source, err := loadCatalog(cmd.Context(), cfg, logger, flags.catalog, flags.systems)
			if err != nil {
				return err
			}
			logger.Debug("catalog loaded", logging.String("source", source), logging.Int("rows", cat.Len()))

			pattern := cfg.Scan.Glob
			if cmd.Flags().Changed("glob") {
				pattern = flags.glob
			}
			workers := cfg.Scan.Workers
			if cmd.Flags().Changed("workers") {
				workers = flags.workers
			}

			stdout := cmd.OutOrStdout()
			summary, err := organize.Run(cmd.Context(), organize.Options{
				SearchRoot:     searchDir,
				OutputRoot:     outputDir,
				Catalog:        cat,
				Pattern:        pattern,
				MaxBytes:       cfg.Scan.MaxBytes,
				Workers:        workers,
				Overwrite:      cfg.Placement.Overwrite || flags.overwrite,
				VerifyExisting: cfg.Placement.VerifyExisting && !flags.noVerify,
				Progress:       progressWriter(cfg.Placement.Progress && !flags.json, cmd.ErrOrStderr()),
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			if flags.json {
				return summary.WriteJSON(stdout)
			}
			return summary.Render(stdout, report.RenderOptions{
				Color:   report.ShouldColorize(stdout),
				Verbose: flags.verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&flags.glob, "glob", "g", "*", "Only hash files matching this pattern (e.g. \"*.bin\")")
	cmd.Flags().BoolVarP(&flags.overwrite, "overwrite", "o", false, "Replace existing files in output_dir")
	cmd.Flags().StringArrayVar(&flags.systems, "system", nil, "Restrict matching to a catalog system (repeatable)")
	cmd.Flags().StringVar(&flags.catalog, "catalog", "", "Catalog file to use (.dat or .db) instead of the configured one")
	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Hashing workers (0 = one per CPU)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Show ambiguous matches and per-file actions")
	cmd.Flags().BoolVar(&flags.noVerify, "no-verify", false, "Do not re-hash existing destinations")

	return cmd
}

// progressWriter returns w when a progress bar should be drawn on it.
func progressWriter(enabled bool, w io.Writer) io.Writer {
	if !enabled || !report.ShouldColorize(w) {
		return nil
	}
	return w
}
