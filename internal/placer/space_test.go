package placer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"biosfinder/internal/digest"
	"biosfinder/internal/faults"
	"biosfinder/internal/hasher"
	"biosfinder/internal/logging"
	"biosfinder/internal/matcher"
	"biosfinder/internal/testsupport"
)

func TestPlaceFailsWhenSpaceIsShort(t *testing.T) {
	base := t.TempDir()
	data := testsupport.Content("big", 1024)
	src := filepath.Join(base, "search", "big.bin")
	testsupport.WriteBytes(t, src, data)
	set := matcher.MatchSet{Matches: []matcher.Match{{
		Source: hasher.Candidate{Path: src, Checksum: digest.Bytes(digest.MD5, data), Size: 1024},
		Entry:  testsupport.Entry("g", "big.bin", data),
	}}}

	p := New(Options{OutputRoot: filepath.Join(base, "system"), Logger: logging.NewNop()})
	p.statfs = func(string) (uint64, error) { return 512, nil }

	_, err := p.Place(context.Background(), set)
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPlaceIgnoresStatfsFailure(t *testing.T) {
	base := t.TempDir()
	data := testsupport.Content("ok", 16)
	src := filepath.Join(base, "search", "ok.bin")
	testsupport.WriteBytes(t, src, data)
	set := matcher.MatchSet{Matches: []matcher.Match{{
		Source: hasher.Candidate{Path: src, Checksum: digest.Bytes(digest.MD5, data), Size: 16},
		Entry:  testsupport.Entry("g", "ok.bin", data),
	}}}

	p := New(Options{OutputRoot: filepath.Join(base, "system"), Logger: logging.NewNop()})
	p.statfs = func(string) (uint64, error) { return 0, errors.New("unsupported") }

	result, err := p.Place(context.Background(), set)
	if err != nil || result.Copied != 1 {
		t.Fatalf("expected copy despite statfs failure, got %+v err %v", result, err)
	}
}
