// Package pattern implements byte patterns with wildcard cells.
//
// A pattern is written as whitespace-separated tokens, each either a hex
// byte ("48", "2e") or a wildcard ("?" or "??"):
//
//	48 8B ?? ?? 89 05
//
// Internally a Pattern is two parallel arrays: the byte values and a
// wildcard mask. Wildcard cells always carry the byte value 0.
package pattern

import (
	"strings"
)

// Pattern is an immutable sequence of byte-or-wildcard cells.
type Pattern struct {
	bytes []byte
	wild  []bool
}

// New builds a pattern from parallel byte and wildcard arrays.
// Byte values at wildcard positions are zeroed. It panics if the
// lengths differ.
func New(b []byte, wild []bool) Pattern {
	if len(b) != len(wild) {
		panic("pattern: bytes and mask length mismatch")
	}
	p := Pattern{
		bytes: make([]byte, len(b)),
		wild:  make([]bool, len(wild)),
	}
	for i := range b {
		if wild[i] {
			p.wild[i] = true
			continue
		}
		p.bytes[i] = b[i]
	}
	return p
}

// FromBytes returns an all-known pattern for b.
func FromBytes(b []byte) Pattern {
	return Pattern{
		bytes: append([]byte{}, b...),
		wild:  make([]bool, len(b)),
	}
}

// FromByteSlices converts each byte slice into an all-known pattern.
func FromByteSlices(bs [][]byte) []Pattern {
	out := make([]Pattern, len(bs))
	for i, b := range bs {
		out[i] = FromBytes(b)
	}
	return out
}

// Len returns the number of cells.
func (p Pattern) Len() int {
	return len(p.bytes)
}

// IsWildcard reports whether cell i is a wildcard.
func (p Pattern) IsWildcard(i int) bool {
	return p.wild[i]
}

// Byte returns the value of cell i (0 for wildcards).
func (p Pattern) Byte(i int) byte {
	return p.bytes[i]
}

// KnownCount returns the number of non-wildcard cells.
func (p Pattern) KnownCount() int {
	n := 0
	for _, w := range p.wild {
		if !w {
			n++
		}
	}
	return n
}

// Bytes returns a copy of the byte template.
func (p Pattern) Bytes() []byte {
	return append([]byte{}, p.bytes...)
}

// Mask returns a copy of the wildcard mask.
func (p Pattern) Mask() []bool {
	return append([]bool{}, p.wild...)
}

// Slice returns cells [from, to) as a new pattern sharing no memory
// with the caller.
func (p Pattern) Slice(from, to int) Pattern {
	return Pattern{
		bytes: append([]byte{}, p.bytes[from:to]...),
		wild:  append([]bool{}, p.wild[from:to]...),
	}
}

// Matches reports whether window satisfies the pattern: every cell is
// either a wildcard or equal to the window byte at the same position.
// Windows of a different length never match.
func (p Pattern) Matches(window []byte) bool {
	if len(window) != len(p.bytes) {
		return false
	}
	for i, b := range window {
		if !p.wild[i] && b != p.bytes[i] {
			return false
		}
	}
	return true
}

// Equal reports whether p and q have identical cells.
func (p Pattern) Equal(q Pattern) bool {
	if len(p.bytes) != len(q.bytes) {
		return false
	}
	for i := range p.bytes {
		if p.wild[i] != q.wild[i] || p.bytes[i] != q.bytes[i] {
			return false
		}
	}
	return true
}

const hexDigits = "0123456789ABCDEF"

// String renders the pattern as "48 ? 2E".
func (p Pattern) String() string {
	var sb strings.Builder
	sb.Grow(len(p.bytes) * 3)
	for i := range p.bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.wild[i] {
			sb.WriteByte('?')
			continue
		}
		sb.WriteByte(hexDigits[p.bytes[i]>>4])
		sb.WriteByte(hexDigits[p.bytes[i]&0x0f])
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
