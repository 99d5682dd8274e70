package matcher_test

import (
	"errors"
	"testing"

	"biosfinder/internal/catalog"
	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/hasher"
	"biosfinder/internal/matcher"
	"biosfinder/internal/testsupport"
)

func candidate(path string, data []byte) hasher.Candidate {
	return hasher.Candidate{Path: path, Checksum: digest.Bytes(digest.MD5, data), Size: int64(len(data))}
}

func TestResolveMatchesByChecksumNotName(t *testing.T) {
	ps1 := testsupport.Content("ps1", 64)
	cat := testsupport.NewCatalog(t, testsupport.Entry("Sony - PlayStation", "scph5501.bin", ps1))

	set, err := matcher.Resolve([]hasher.Candidate{
		candidate("/search/renamed.rom", ps1),
		candidate("/search/scph5501.bin", testsupport.Content("impostor", 64)),
	}, cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected one match, got %d", set.Len())
	}
	m := set.Matches[0]
	if m.Source.Path != "/search/renamed.rom" || m.Entry.Name != "scph5501.bin" || m.Row != 0 {
		t.Fatalf("unexpected match: %+v", m)
	}
	if set.Bytes() != 64 {
		t.Fatalf("expected 64 bytes, got %d", set.Bytes())
	}
}

func TestResolveFanOut(t *testing.T) {
	saturn := testsupport.Content("saturn", 32)
	cat := testsupport.NewCatalog(t,
		testsupport.Entry("Sega - Saturn", "saturn_bios.bin", saturn),
		testsupport.Entry("Sega - Saturn", "sega_101.bin", saturn),
		testsupport.Entry("Sega - Saturn", "mpr-17933.bin", testsupport.Content("euro", 32)),
	)

	set, err := matcher.Resolve([]hasher.Candidate{candidate("/s/bios.bin", saturn)}, cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected fan-out to two rows, got %d", set.Len())
	}
	if set.Matches[0].Entry.Name != "saturn_bios.bin" || set.Matches[1].Entry.Name != "sega_101.bin" {
		t.Fatalf("matches not in catalog order: %+v", set.Matches)
	}
	for _, m := range set.Matches {
		if m.Source.Path != "/s/bios.bin" {
			t.Fatalf("fan-out match has wrong source %s", m.Source.Path)
		}
	}
}

func TestResolveFirstCandidateWins(t *testing.T) {
	data := testsupport.Content("dup", 16)
	cat := testsupport.NewCatalog(t, testsupport.Entry("g", "bios.bin", data))

	set, err := matcher.Resolve([]hasher.Candidate{
		candidate("/s/a/copy.bin", data),
		candidate("/s/b/copy.bin", data),
	}, cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Len() != 1 || set.Matches[0].Source.Path != "/s/a/copy.bin" {
		t.Fatalf("expected first candidate to win, got %+v", set.Matches)
	}
	if len(set.Ambiguous) != 1 || len(set.Ambiguous[0].Paths) != 2 || set.Ambiguous[0].Name != "bios.bin" {
		t.Fatalf("expected ambiguity to be recorded, got %+v", set.Ambiguous)
	}
}

func TestResolveOrdersByCatalogRow(t *testing.T) {
	a := testsupport.Content("first row", 16)
	b := testsupport.Content("second row", 16)
	cat := testsupport.NewCatalog(t,
		testsupport.Entry("g", "a.bin", a),
		testsupport.Entry("g", "b.bin", b),
	)

	set, err := matcher.Resolve([]hasher.Candidate{
		candidate("/s/0.bin", b),
		candidate("/s/1.bin", a),
	}, cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Len() != 2 || set.Matches[0].Row != 0 || set.Matches[1].Row != 1 {
		t.Fatalf("matches not in row order: %+v", set.Matches)
	}
	if set.Matches[0].Source.Path != "/s/1.bin" || set.Matches[1].Source.Path != "/s/0.bin" {
		t.Fatalf("wrong sources: %+v", set.Matches)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	cat := testsupport.NewCatalog(t, testsupport.Entry("g", "a.bin", testsupport.Content("a", 4)))
	set, err := matcher.Resolve(nil, cat)
	if err != nil || set.Len() != 0 {
		t.Fatalf("expected empty set, got %+v err %v", set, err)
	}

	set, err = matcher.Resolve([]hasher.Candidate{candidate("/s/x", testsupport.Content("x", 4))}, cat)
	if err != nil || set.Len() != 0 {
		t.Fatalf("expected no matches, got %+v err %v", set, err)
	}
}

func TestResolveDuplicateDestination(t *testing.T) {
	a := testsupport.Content("a", 16)
	b := testsupport.Content("b", 16)
	cat := testsupport.NewCatalog(t,
		testsupport.Entry("Vendor - One", "shared/bios.bin", a),
		testsupport.Entry("Vendor - Two", "shared//bios.bin", b),
	)

	set, err := matcher.Resolve([]hasher.Candidate{candidate("/s/a", a), candidate("/s/b", b)}, cat)
	if !errors.Is(err, matcher.ErrDuplicateDestination) || !errors.Is(err, faults.ErrInvariant) {
		t.Fatalf("expected duplicate destination invariant error, got %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("no partial set may be returned, got %d matches", set.Len())
	}
}

func TestValidateDetectsChecksumMismatch(t *testing.T) {
	data := testsupport.Content("a", 16)
	cat := testsupport.NewCatalog(t, testsupport.Entry("g", "a.bin", data))
	set := matcher.MatchSet{Matches: []matcher.Match{{
		Source: candidate("/s/a", testsupport.Content("other", 16)),
		Entry:  cat.Entry(0),
		Row:    0,
	}}}
	if err := matcher.Validate(set, cat); !errors.Is(err, faults.ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
}

func TestResolveSkipsRowsWithoutKey(t *testing.T) {
	cat, err := catalog.New([]catalog.Entry{{Group: "g", Name: "nokey.bin"}}, digest.MD5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	set, err := matcher.Resolve([]hasher.Candidate{{Path: "/s/empty", Checksum: ""}}, cat)
	if err != nil || set.Len() != 0 {
		t.Fatalf("rows without a checksum must not match, got %+v err %v", set, err)
	}
}
