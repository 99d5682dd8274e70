package placer_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/hasher"
	"biosfinder/internal/logging"
	"biosfinder/internal/matcher"
	"biosfinder/internal/placer"
	"biosfinder/internal/testsupport"
)

type fixture struct {
	search string
	output string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	return fixture{search: filepath.Join(base, "search"), output: filepath.Join(base, "system")}
}

// source writes data under the search root and returns its candidate.
func (f fixture) source(t *testing.T, rel string, data []byte) hasher.Candidate {
	t.Helper()
	path := filepath.Join(f.search, rel)
	testsupport.WriteBytes(t, path, data)
	return hasher.Candidate{Path: path, Checksum: digest.Bytes(digest.MD5, data), Size: int64(len(data))}
}

func matchSet(t *testing.T, pairs ...any) matcher.MatchSet {
	t.Helper()
	var set matcher.MatchSet
	for i := 0; i < len(pairs); i += 2 {
		c := pairs[i].(hasher.Candidate)
		name := pairs[i+1].(string)
		set.Matches = append(set.Matches, matcher.Match{
			Source: c,
			Entry:  testsupport.Entry("Test System", name, nil),
			Row:    i / 2,
		})
	}
	return set
}

func newPlacer(output string, mutate ...func(*placer.Options)) *placer.Placer {
	opts := placer.Options{
		OutputRoot:     output,
		VerifyExisting: true,
		Logger:         logging.NewNop(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return placer.New(opts)
}

func TestPlaceCopiesIntoSubdirectories(t *testing.T) {
	f := newFixture(t)
	data := testsupport.Content("pce", 128)
	set := matchSet(t, f.source(t, "misc/card.rom", data), "pce/syscard3.pce")

	result, err := newPlacer(f.output).Place(context.Background(), set)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if result.Copied != 1 || result.BytesCopied != 128 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := testsupport.ReadBytes(t, filepath.Join(f.output, "pce", "syscard3.pce")); !bytes.Equal(got, data) {
		t.Fatalf("destination content differs")
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].Action != placer.ActionCopied {
		t.Fatalf("unexpected outcomes: %+v", result.Outcomes)
	}

	tree := testsupport.Tree(t, f.output)
	if len(tree) != 1 {
		t.Fatalf("expected only the placed file in output, got %v", keys(tree))
	}
}

func TestPlaceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	set := matchSet(t, f.source(t, "a.bin", testsupport.Content("a", 64)), "scph5501.bin")
	p := newPlacer(f.output)

	if _, err := p.Place(context.Background(), set); err != nil {
		t.Fatalf("first Place: %v", err)
	}
	before := testsupport.Tree(t, f.output)
	result, err := p.Place(context.Background(), set)
	if err != nil {
		t.Fatalf("second Place: %v", err)
	}
	if result.Copied != 0 || result.Skipped != 1 || len(result.Conflicts) != 0 {
		t.Fatalf("second run should skip, got %+v", result)
	}
	after := testsupport.Tree(t, f.output)
	if len(before) != len(after) || !bytes.Equal(before["scph5501.bin"], after["scph5501.bin"]) {
		t.Fatalf("second run changed the output tree")
	}
}

func TestPlaceKeepsModifiedDestination(t *testing.T) {
	f := newFixture(t)
	set := matchSet(t, f.source(t, "a.bin", testsupport.Content("good", 64)), "bios.bin")
	edited := testsupport.Content("edited", 64)
	testsupport.WriteBytes(t, filepath.Join(f.output, "bios.bin"), edited)

	result, err := newPlacer(f.output).Place(context.Background(), set)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if len(result.Conflicts) != 1 || result.Copied != 0 {
		t.Fatalf("expected one conflict, got %+v", result)
	}
	if result.Skipped != 0 {
		t.Fatalf("conflict must not count as already present, got %+v", result)
	}
	if !bytes.Equal(testsupport.ReadBytes(t, filepath.Join(f.output, "bios.bin")), edited) {
		t.Fatalf("modified destination was overwritten")
	}
}

func TestPlaceSkipsWithoutVerification(t *testing.T) {
	f := newFixture(t)
	set := matchSet(t, f.source(t, "a.bin", testsupport.Content("good", 64)), "bios.bin")
	testsupport.WriteBytes(t, filepath.Join(f.output, "bios.bin"), testsupport.Content("edited", 64))

	result, err := newPlacer(f.output, func(o *placer.Options) { o.VerifyExisting = false }).Place(context.Background(), set)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if result.Skipped != 1 || len(result.Conflicts) != 0 {
		t.Fatalf("expected a plain skip, got %+v", result)
	}
}

func TestPlaceOverwrite(t *testing.T) {
	f := newFixture(t)
	good := testsupport.Content("good", 64)
	set := matchSet(t, f.source(t, "a.bin", good), "bios.bin")
	testsupport.WriteBytes(t, filepath.Join(f.output, "bios.bin"), testsupport.Content("stale", 10))

	result, err := newPlacer(f.output, func(o *placer.Options) { o.Overwrite = true }).Place(context.Background(), set)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if result.Overwritten != 1 {
		t.Fatalf("expected overwrite, got %+v", result)
	}
	if !bytes.Equal(testsupport.ReadBytes(t, filepath.Join(f.output, "bios.bin")), good) {
		t.Fatalf("destination not replaced")
	}
}

func TestPlaceSelfReferential(t *testing.T) {
	f := newFixture(t)
	data := testsupport.Content("self", 64)
	c := f.source(t, "scph5501.bin", data)
	set := matchSet(t, c, "scph5501.bin")

	for _, overwrite := range []bool{false, true} {
		result, err := newPlacer(f.search, func(o *placer.Options) { o.Overwrite = overwrite }).Place(context.Background(), set)
		if err != nil {
			t.Fatalf("Place (overwrite=%v): %v", overwrite, err)
		}
		if result.SameFile != 1 || result.Copied != 0 || result.Overwritten != 0 {
			t.Fatalf("expected same-file skip, got %+v", result)
		}
	}
	if !bytes.Equal(testsupport.ReadBytes(t, c.Path), data) {
		t.Fatalf("source modified")
	}
}

func TestPlaceFanOutCopiesEachName(t *testing.T) {
	f := newFixture(t)
	c := f.source(t, "saturn.bin", testsupport.Content("saturn", 32))
	set := matchSet(t, c, "saturn_bios.bin", c, "sega_101.bin")

	result, err := newPlacer(f.output).Place(context.Background(), set)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if result.Copied != 2 {
		t.Fatalf("expected two copies, got %+v", result)
	}
	tree := testsupport.Tree(t, f.output)
	if !bytes.Equal(tree["saturn_bios.bin"], tree["sega_101.bin"]) || len(tree) != 2 {
		t.Fatalf("fan-out copies differ or missing: %v", keys(tree))
	}
}

func TestPlaceRejectsEscapingName(t *testing.T) {
	f := newFixture(t)
	c := f.source(t, "a.bin", testsupport.Content("a", 8))
	set := matcher.MatchSet{Matches: []matcher.Match{{Source: c, Entry: testsupport.Entry("g", "../evil.bin", nil)}}}

	_, err := newPlacer(f.output).Place(context.Background(), set)
	if !errors.Is(err, faults.ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(f.output), "evil.bin")); !os.IsNotExist(statErr) {
		t.Fatalf("escaping file was written")
	}
}

func TestPlaceDetectsChangedSource(t *testing.T) {
	f := newFixture(t)
	c := f.source(t, "a.bin", testsupport.Content("a", 8))
	testsupport.WriteBytes(t, c.Path, testsupport.Content("changed", 8))
	set := matchSet(t, c, "bios.bin")

	if _, err := newPlacer(f.output).Place(context.Background(), set); !errors.Is(err, faults.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.output, "bios.bin")); !os.IsNotExist(err) {
		t.Fatalf("unverified copy left at destination")
	}
	tree := testsupport.Tree(t, f.output)
	if len(tree) != 0 {
		t.Fatalf("temp files left behind: %v", keys(tree))
	}
}

func TestPlaceHonoursLock(t *testing.T) {
	f := newFixture(t)
	set := matchSet(t, f.source(t, "a.bin", testsupport.Content("a", 8)), "bios.bin")
	if err := os.MkdirAll(f.output, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	held := flock.New(filepath.Join(f.output, placer.LockFileName))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	if _, err := newPlacer(f.output).Place(context.Background(), set); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestPlaceEmptySetTouchesNothing(t *testing.T) {
	f := newFixture(t)
	result, err := newPlacer(f.output).Place(context.Background(), matcher.MatchSet{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Fatalf("unexpected outcomes: %+v", result.Outcomes)
	}
	if _, err := os.Stat(f.output); !os.IsNotExist(err) {
		t.Fatalf("output root should not be created for an empty plan")
	}
}

func TestPlaceWritesProgress(t *testing.T) {
	f := newFixture(t)
	set := matchSet(t,
		f.source(t, "a.bin", testsupport.Content("a", 4096)), "bios_a.bin",
		f.source(t, "b.bin", testsupport.Content("b", 4096)), "bios_b.bin",
	)
	var progress bytes.Buffer
	result, err := newPlacer(f.output, func(o *placer.Options) { o.Progress = &progress }).Place(context.Background(), set)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if result.Copied != 2 {
		t.Fatalf("expected two copies, got %+v", result)
	}
	if !strings.Contains(progress.String(), "placing") {
		t.Fatalf("expected progress bar output, got %q", progress.String())
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
