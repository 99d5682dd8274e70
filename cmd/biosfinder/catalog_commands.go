package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"biosfinder/internal/catalog"
	"biosfinder/internal/config"
	"biosfinder/internal/report"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the BIOS reference catalog",
	}

	catalogCmd.AddCommand(newCatalogFetchCommand(ctx))
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))

	return catalogCmd
}

func newCatalogFetchCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the catalog DAT if missing or stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			fetcher := newFetcher(cfg, logger)
			var downloaded bool
			if force {
				err = fetcher.Download(cmd.Context())
				downloaded = err == nil
			} else {
				downloaded, err = fetcher.Ensure(cmd.Context(), false)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if downloaded {
				fmt.Fprintf(out, "Catalog downloaded to %s\n", cfg.Paths.CatalogPath)
			} else {
				fmt.Fprintf(out, "Catalog at %s is current\n", cfg.Paths.CatalogPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download even when the local copy is current")
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [dat]",
		Short: "Import a DAT into the local catalog database",
		Long: `Parse a clrmamepro DAT and store its rows in the catalog database
(paths.catalog_db). Later runs read the database instead of the DAT. Without an
argument the configured catalog_path is imported, downloading it first if needed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			source := cfg.Paths.CatalogPath
			if len(args) == 1 {
				if source, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve dat path: %w", err)
				}
			} else if _, err := newFetcher(cfg, logger).Ensure(cmd.Context(), false); err != nil {
				return err
			}

			file, err := os.Open(source)
			if err != nil {
				return fmt.Errorf("open dat: %w", err)
			}
			defer file.Close()
			entries, err := catalog.ParseDAT(file)
			if err != nil {
				return fmt.Errorf("parse %s: %w", source, err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("%s contains no rom entries", source)
			}
			for _, entry := range entries {
				if _, err := catalog.CleanName(entry.Name); err != nil {
					return fmt.Errorf("%s: %s: %w", source, entry.Group, err)
				}
			}

			store, err := catalog.OpenStore(cmd.Context(), cfg.Paths.CatalogDB)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Import(cmd.Context(), entries, source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries from %s into %s\n", n, source, store.Path())
			return nil
		},
	}
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	var systems []string
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List catalog systems, or the files of selected systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			cat, source, err := loadCatalog(cmd.Context(), cfg, logger, catalogPath, systems)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog: %s (%d entries, keyed by %s)\n", source, cat.Len(), cat.Algorithm())

			if len(systems) > 0 {
				rows := make([][]string, 0, cat.Len())
				for i, entry := range cat.Entries() {
					rows = append(rows, []string{entry.Group, entry.Name, humanize.IBytes(uint64(entry.Size)), cat.Key(i)})
				}
				fmt.Fprintln(out, report.RenderTable(
					[]string{"System", "File", "Size", strings.ToUpper(cat.Algorithm().String())},
					rows,
					[]report.ColumnAlignment{report.AlignLeft, report.AlignLeft, report.AlignRight, report.AlignLeft},
				))
				return nil
			}

			type groupTotals struct {
				files int
				bytes int64
			}
			totals := make(map[string]*groupTotals)
			for _, entry := range cat.Entries() {
				gt, ok := totals[entry.Group]
				if !ok {
					gt = &groupTotals{}
					totals[entry.Group] = gt
				}
				gt.files++
				gt.bytes += entry.Size
			}
			rows := make([][]string, 0, len(totals))
			for _, group := range cat.Groups() {
				gt := totals[group]
				rows = append(rows, []string{group, strconv.Itoa(gt.files), humanize.IBytes(uint64(gt.bytes))})
			}
			fmt.Fprintln(out, report.RenderTable(
				[]string{"System", "Files", "Size"},
				rows,
				[]report.ColumnAlignment{report.AlignLeft, report.AlignRight, report.AlignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&systems, "system", nil, "Show the files of this system (repeatable)")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file to show (.dat or .db)")
	return cmd
}
