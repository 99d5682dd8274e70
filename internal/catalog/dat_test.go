package catalog_test

import (
	"strings"
	"testing"

	"biosfinder/internal/catalog"
)

const sampleDAT = `clrmamepro (
	name "System"
	description "System"
	comment "System, firmware, and BIOS files used by libretro cores."
)

game (
	name "Sony - PlayStation"
	comment "Sony - PlayStation"
	rom ( name scph5500.bin size 524288 crc ff3eeb8c md5 8DD7D5296A650FAC7319BCE665A6A53C sha1 b05def971d8ec59f346f2d9ac21fb742e3eb6917 )
	rom ( name scph5501.bin size 524288 crc 8d8cb7e4 md5 490f666e1afb15b7362b406ed1cea246 sha1 0555c6fae8906f3f09baf5988f00e55f88e9f30b )
)

game (
	name "NEC - PC Engine"
	rom ( name "pce/syscard3 (U).pce" size 262144 crc 6d9a73ef md5 38179df8f4ac870017db21ebcbf53114 )
)
`

func TestParseDATReadsRomLines(t *testing.T) {
	entries, err := catalog.ParseDAT(strings.NewReader(sampleDAT))
	if err != nil {
		t.Fatalf("ParseDAT: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Group != "Sony - PlayStation" || first.Name != "scph5500.bin" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if first.Size != 524288 || first.CRC32 != "ff3eeb8c" {
		t.Fatalf("unexpected size/crc: %+v", first)
	}
	if first.SHA1 != "b05def971d8ec59f346f2d9ac21fb742e3eb6917" {
		t.Fatalf("unexpected sha1: %q", first.SHA1)
	}

	quoted := entries[2]
	if quoted.Group != "NEC - PC Engine" || quoted.Name != "pce/syscard3 (U).pce" {
		t.Fatalf("quoted name not preserved: %+v", quoted)
	}
	if quoted.SHA1 != "" {
		t.Fatalf("expected missing sha1 to stay empty, got %q", quoted.SHA1)
	}
}

func TestParseDATIgnoresHeaderAndUnknownBlocks(t *testing.T) {
	input := `clrmamepro ( name "x" rom ( name ignored.bin md5 00 ) )
emulator ( name "y" )
game ( name "Z" rom ( name z.bin size 1 md5 ab ) )`
	entries, err := catalog.ParseDAT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDAT: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "z.bin" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestParseDATErrors(t *testing.T) {
	cases := map[string]string{
		"unclosed block":      `game ( name "x" rom ( name a.bin md5 00 )`,
		"unterminated string": "game ( name \"x\n)",
		"stray paren":         `) game ( name "x" )`,
		"missing open":        `game name "x"`,
		"missing value":       `game ( name )`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := catalog.ParseDAT(strings.NewReader(input)); err == nil {
				t.Fatalf("expected error for %q", input)
			}
		})
	}
}

func TestParseDATEmptyInput(t *testing.T) {
	entries, err := catalog.ParseDAT(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseDAT: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
