// Package matcher joins hashed candidates to catalog rows by checksum.
package matcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"biosfinder/internal/catalog"
	"biosfinder/internal/faults"
	"biosfinder/internal/hasher"
)

const stage = "match"

// ErrDuplicateDestination is returned when two matches resolve to the same
// destination name.
var ErrDuplicateDestination = errors.New("duplicate destination name")

// Match pairs one catalog row with the candidate chosen to satisfy it.
type Match struct {
	Source hasher.Candidate `json:"source"`
	Entry  catalog.Entry    `json:"entry"`
	Row    int              `json:"row"`
}

// Ambiguity records a catalog row that several candidates could satisfy.
// Paths are in traversal order; the first one was chosen.
type Ambiguity struct {
	Row   int      `json:"row"`
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

// MatchSet is the resolved placement plan ordered by catalog row.
type MatchSet struct {
	Matches   []Match     `json:"matches"`
	Ambiguous []Ambiguity `json:"ambiguous,omitempty"`
}

// Len returns the number of matches.
func (s MatchSet) Len() int { return len(s.Matches) }

// Bytes sums the source sizes of all matches.
func (s MatchSet) Bytes() int64 {
	var total int64
	for _, m := range s.Matches {
		total += m.Source.Size
	}
	return total
}

// Resolve builds the placement plan. Every catalog row whose checksum appears
// among the candidates gets exactly one match; when several candidates share
// the checksum the first in traversal order wins. Rows that share a checksum
// each get their own match.
func Resolve(candidates []hasher.Candidate, cat *catalog.Catalog) (MatchSet, error) {
	var set MatchSet
	if len(candidates) == 0 || cat.Len() == 0 {
		return set, nil
	}

	// Candidates are visited in traversal order, so the first hit per row wins.
	hits := make(map[int][]int)
	for i, c := range candidates {
		for _, row := range cat.Rows(c.Checksum) {
			hits[row] = append(hits[row], i)
		}
	}
	rows := make([]int, 0, len(hits))
	for row := range hits {
		rows = append(rows, row)
	}
	sort.Ints(rows)

	for _, row := range rows {
		idx := hits[row]
		entry := cat.Entry(row)
		set.Matches = append(set.Matches, Match{Source: candidates[idx[0]], Entry: entry, Row: row})
		if len(idx) > 1 {
			paths := make([]string, len(idx))
			for i, n := range idx {
				paths[i] = candidates[n].Path
			}
			set.Ambiguous = append(set.Ambiguous, Ambiguity{Row: row, Name: entry.Name, Paths: paths})
		}
	}

	if err := Validate(set, cat); err != nil {
		return MatchSet{}, err
	}
	return set, nil
}

// Validate checks the invariants of a match set: each source checksum equals
// its row's key and no destination name is used twice. Names compare
// case-sensitively on their cleaned slash form.
func Validate(set MatchSet, cat *catalog.Catalog) error {
	seen := make(map[string]int, len(set.Matches))
	for _, m := range set.Matches {
		if m.Source.Checksum != cat.Key(m.Row) {
			return faults.Wrap(faults.ErrInvariant, stage, "verify match",
				fmt.Sprintf("checksum of %s does not match catalog row %d", m.Source.Path, m.Row), nil)
		}
		name := strings.TrimSpace(m.Entry.Name)
		if prev, ok := seen[name]; ok {
			return faults.Wrap(faults.ErrInvariant, stage, "verify destinations",
				fmt.Sprintf("%q claimed by catalog rows %d and %d", name, prev, m.Row), ErrDuplicateDestination)
		}
		seen[name] = m.Row
	}
	return nil
}
