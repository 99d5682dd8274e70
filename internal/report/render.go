package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// RenderOptions controls human-readable output.
type RenderOptions struct {
	Color bool
	// Verbose adds ambiguity details and per-file outcomes.
	Verbose bool
}

// Render writes the headline, the per-system table, and placement totals.
func (s Summary) Render(w io.Writer, opts RenderOptions) error {
	var b strings.Builder
	headline := s.Headline()
	if s.Matched > 0 {
		headline += ":"
	}
	b.WriteString(paint(headline, ansiBlue, opts.Color))
	b.WriteString("\n")
	if s.Matched == 0 {
		b.WriteString(s.scanLine())
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	rows := make([][]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		rows = append(rows, []string{g.Group, strconv.Itoa(g.Files), humanize.IBytes(uint64(g.Bytes))})
	}
	b.WriteString(RenderTable([]string{"System", "Files", "Size"}, rows, []ColumnAlignment{AlignLeft, AlignRight, AlignRight}))
	b.WriteString("\n")

	placed := fmt.Sprintf("Placed: %d copied, %d overwritten, %d already present, %d in place (%s written)",
		s.Copied, s.Overwritten, s.Skipped, s.SameFile, humanize.IBytes(uint64(s.BytesCopied)))
	b.WriteString(paint(placed, ansiGreen, opts.Color && s.Copied+s.Overwritten > 0))
	b.WriteString("\n")
	b.WriteString(s.scanLine())
	b.WriteString("\n")

	if len(s.Conflicts) > 0 {
		b.WriteString(paint(fmt.Sprintf("%d existing files differ from the catalog and were left in place:", len(s.Conflicts)), ansiYellow, opts.Color))
		b.WriteString("\n")
		for _, path := range s.Conflicts {
			b.WriteString("  " + path + "\n")
		}
	}

	if opts.Verbose {
		for _, amb := range s.Ambiguous {
			fmt.Fprintf(&b, "%s matched %d files; used %s\n", amb.Name, len(amb.Paths), amb.Paths[0])
			for _, p := range amb.Paths[1:] {
				b.WriteString("  also: " + p + "\n")
			}
		}
		if len(s.Outcomes) > 0 {
			rows := make([][]string, 0, len(s.Outcomes))
			for _, o := range s.Outcomes {
				rows = append(rows, []string{string(o.Action), o.Group, o.Source, o.Destination})
			}
			b.WriteString(RenderTable([]string{"Action", "System", "Source", "Destination"}, rows, nil))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (s Summary) scanLine() string {
	return fmt.Sprintf("Scanned %d files (%s hashed); skipped %d by pattern, %d over size limit, %d unreadable",
		s.Scan.Seen, humanize.IBytes(uint64(s.Scan.Bytes)), s.Scan.SkippedPattern, s.Scan.SkippedSize, s.Scan.Unreadable)
}

func paint(s, color string, enabled bool) string {
	if !enabled {
		return s
	}
	return color + s + ansiReset
}

// ColumnAlignment selects left or right alignment for a table column.
type ColumnAlignment int

const (
	AlignLeft ColumnAlignment = iota
	AlignRight
)

// RenderTable renders rows as a rounded go-pretty table.
func RenderTable(headers []string, rows [][]string, aligns []ColumnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// ShouldColorize reports whether writer is a terminal.
func ShouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
