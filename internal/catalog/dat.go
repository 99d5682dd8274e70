package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ParseDAT reads a clrmamepro-format DAT (the format libretro-database ships
// System.dat in) and returns one entry per rom line. The enclosing game block
// name becomes the entry group.
//
//	game (
//		name "Sony - PlayStation"
//		rom ( name scph5501.bin size 524288 crc 8d8cb7e4 md5 490f666e1afb15b7362b406ed1cea246 sha1 ... )
//	)
func ParseDAT(r io.Reader) ([]Entry, error) {
	tokens, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	p := &datParser{tokens: tokens}
	var entries []Entry
	for !p.done() {
		tok := p.next()
		if tok.quoted || tok.text == "(" || tok.text == ")" {
			return nil, fmt.Errorf("dat line %d: unexpected %q at top level", tok.line, tok.text)
		}
		block, err := p.block()
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(tok.text) {
		case "game", "machine", "resource":
			entries = append(entries, block.entries()...)
		}
	}
	return entries, nil
}

type token struct {
	text   string
	quoted bool
	line   int
}

func tokenize(r io.Reader) ([]token, error) {
	br := bufio.NewReader(r)
	var tokens []token
	var cur strings.Builder
	line := 1
	inQuote := false
	flush := func(quoted bool) {
		if cur.Len() > 0 || quoted {
			tokens = append(tokens, token{text: cur.String(), quoted: quoted, line: line})
			cur.Reset()
		}
	}
	for {
		ch, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dat: %w", err)
		}
		if inQuote {
			if ch == '"' {
				flush(true)
				inQuote = false
				continue
			}
			if ch == '\n' {
				return nil, fmt.Errorf("dat line %d: unterminated string", line)
			}
			cur.WriteRune(ch)
			continue
		}
		switch {
		case ch == '"':
			flush(false)
			inQuote = true
		case ch == '(' || ch == ')':
			flush(false)
			tokens = append(tokens, token{text: string(ch), line: line})
		case unicode.IsSpace(ch):
			flush(false)
		default:
			cur.WriteRune(ch)
		}
		if ch == '\n' {
			line++
		}
	}
	if inQuote {
		return nil, fmt.Errorf("dat line %d: unterminated string", line)
	}
	flush(false)
	return tokens, nil
}

type datParser struct {
	tokens []token
	pos    int
}

func (p *datParser) done() bool { return p.pos >= len(p.tokens) }

func (p *datParser) next() token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

// datBlock holds the scalar fields and nested rom blocks of one "( ... )".
type datBlock struct {
	fields map[string]string
	roms   []map[string]string
}

func (p *datParser) block() (*datBlock, error) {
	if p.done() || p.tokens[p.pos].text != "(" || p.tokens[p.pos].quoted {
		line := 0
		if !p.done() {
			line = p.tokens[p.pos].line
		}
		return nil, fmt.Errorf("dat line %d: expected '('", line)
	}
	open := p.next()
	b := &datBlock{fields: make(map[string]string)}
	for {
		if p.done() {
			return nil, fmt.Errorf("dat line %d: unclosed block", open.line)
		}
		key := p.next()
		if key.text == ")" && !key.quoted {
			return b, nil
		}
		if p.done() {
			return nil, fmt.Errorf("dat line %d: missing value for %q", key.line, key.text)
		}
		if peek := p.tokens[p.pos]; peek.text == "(" && !peek.quoted {
			nested, err := p.block()
			if err != nil {
				return nil, err
			}
			if strings.EqualFold(key.text, "rom") {
				b.roms = append(b.roms, nested.fields)
			}
			continue
		}
		value := p.next()
		if value.text == ")" && !value.quoted {
			return nil, fmt.Errorf("dat line %d: missing value for %q", key.line, key.text)
		}
		name := strings.ToLower(key.text)
		if _, exists := b.fields[name]; !exists {
			b.fields[name] = value.text
		}
	}
}

func (b *datBlock) entries() []Entry {
	group := b.fields["name"]
	if group == "" {
		group = b.fields["description"]
	}
	out := make([]Entry, 0, len(b.roms))
	for _, rom := range b.roms {
		size, _ := strconv.ParseInt(rom["size"], 10, 64)
		out = append(out, Entry{
			Group: group,
			Name:  rom["name"],
			Size:  size,
			MD5:   rom["md5"],
			SHA1:  rom["sha1"],
			CRC32: rom["crc"],
		})
	}
	return out
}
