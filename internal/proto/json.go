package proto

import (
	"errors"
	"strings"

	"github.com/heartline-app/relay-server/internal/store"
)

// The wire format never carries more than flat string-valued objects, so this
// file implements a deliberately minimal codec (ordered pairs, no nesting)
// instead of pulling in a general JSON parser.

// Field is one ordered key/value pair of a flat object.
type Field struct {
	Key   string
	Value string
}

var errMalformedFlat = errors.New("malformed flat object")

// Escape encodes a value for embedding in a flat-object string. Consumers
// reverse it with Unescape.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses Escape. Unknown escape sequences keep the escaped rune.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped {
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		escaped = false
		switch r {
		case 'n':
			b.WriteRune('\n')
		case 'r':
			b.WriteRune('\r')
		case 't':
			b.WriteRune('\t')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EncodeFlat serializes ordered pairs as a flat JSON object.
func EncodeFlat(fields ...Field) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(Escape(f.Key))
		b.WriteString(`":"`)
		b.WriteString(Escape(f.Value))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// DecodeFlat parses a flat JSON object with string values only, preserving
// pair order. Nesting, arrays and non-string values are rejected.
func DecodeFlat(s string) ([]Field, error) {
	p := &flatParser{input: s}
	p.skipSpace()
	if !p.consume('{') {
		return nil, errMalformedFlat
	}

	var fields []Field
	p.skipSpace()
	if p.consume('}') {
		p.skipSpace()
		if !p.done() {
			return nil, errMalformedFlat
		}
		return fields, nil
	}

	for {
		p.skipSpace()
		key, ok := p.readString()
		if !ok {
			return nil, errMalformedFlat
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, errMalformedFlat
		}
		p.skipSpace()
		value, ok := p.readString()
		if !ok {
			return nil, errMalformedFlat
		}
		fields = append(fields, Field{Key: key, Value: value})

		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return nil, errMalformedFlat
	}

	p.skipSpace()
	if !p.done() {
		return nil, errMalformedFlat
	}
	return fields, nil
}

type flatParser struct {
	input string
	pos   int
}

func (p *flatParser) done() bool {
	return p.pos >= len(p.input)
}

func (p *flatParser) skipSpace() {
	for !p.done() {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *flatParser) consume(c byte) bool {
	if p.done() || p.input[p.pos] != c {
		return false
	}
	p.pos++
	return true
}

// readString consumes a double-quoted string and returns its unescaped value.
func (p *flatParser) readString() (string, bool) {
	if !p.consume('"') {
		return "", false
	}
	start := p.pos
	for !p.done() {
		switch p.input[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			raw := p.input[start:p.pos]
			p.pos++
			return Unescape(raw), true
		default:
			p.pos++
		}
	}
	return "", false
}

// historyTimeLayout matches the ISO-8601 local date-time the original wire
// format used for history rows.
const historyTimeLayout = "2006-01-02T15:04:05"

// EncodeHistory serializes history entries as a flat JSON array of flat
// string-valued objects, oldest first as handed in by the store.
func EncodeHistory(entries []store.HistoryEntry) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EncodeFlat(
			Field{Key: "sender_username", Value: e.SenderUsername},
			Field{Key: "content", Value: e.Content},
			Field{Key: "timestamp", Value: e.Timestamp.Format(historyTimeLayout)},
		))
	}
	b.WriteByte(']')
	return b.String()
}
