// Package report summarizes a run for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"biosfinder/internal/hasher"
	"biosfinder/internal/matcher"
	"biosfinder/internal/placer"
)

// GroupCount is the number of matched files for one system.
type GroupCount struct {
	Group string `json:"system"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// Summary is everything a run found and did.
type Summary struct {
	RunID       string              `json:"run_id,omitempty"`
	SearchRoot  string              `json:"search_root,omitempty"`
	OutputRoot  string              `json:"output_root,omitempty"`
	Matched     int                 `json:"matched"`
	Systems     int                 `json:"systems"`
	Groups      []GroupCount        `json:"groups"`
	Copied      int                 `json:"copied"`
	Overwritten int                 `json:"overwritten"`
	Skipped     int                 `json:"skipped"`
	SameFile    int                 `json:"same_file"`
	BytesCopied int64               `json:"bytes_copied"`
	Conflicts   []string            `json:"conflicts,omitempty"`
	Ambiguous   []matcher.Ambiguity `json:"ambiguous,omitempty"`
	Scan        hasher.Stats        `json:"scan"`
	Outcomes    []placer.Outcome    `json:"outcomes,omitempty"`
}

// Build aggregates the match set, placement result, and scan stats. Groups
// are ordered by locale-aware collation of their names.
func Build(set matcher.MatchSet, result placer.Result, stats hasher.Stats) Summary {
	counts := make(map[string]*GroupCount)
	for _, m := range set.Matches {
		gc, ok := counts[m.Entry.Group]
		if !ok {
			gc = &GroupCount{Group: m.Entry.Group}
			counts[m.Entry.Group] = gc
		}
		gc.Files++
		gc.Bytes += m.Source.Size
	}

	groups := make([]GroupCount, 0, len(counts))
	for _, gc := range counts {
		groups = append(groups, *gc)
	}
	sortGroups(groups)

	return Summary{
		Matched:     set.Len(),
		Systems:     len(groups),
		Groups:      groups,
		Copied:      result.Copied,
		Overwritten: result.Overwritten,
		Skipped:     result.Skipped,
		SameFile:    result.SameFile,
		BytesCopied: result.BytesCopied,
		Conflicts:   result.Conflicts,
		Ambiguous:   set.Ambiguous,
		Scan:        stats,
		Outcomes:    result.Outcomes,
	}
}

func sortGroups(groups []GroupCount) {
	col := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(groups, func(i, j int) bool {
		if c := col.CompareString(groups[i].Group, groups[j].Group); c != 0 {
			return c < 0
		}
		return groups[i].Group < groups[j].Group
	})
}

// Headline is the one-line result of the run.
func (s Summary) Headline() string {
	if s.Matched == 0 {
		return "No matching BIOS files were found"
	}
	return fmt.Sprintf("%d matching BIOS files were found for %d unique systems", s.Matched, s.Systems)
}

// WriteJSON encodes the summary as indented JSON.
func (s Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
