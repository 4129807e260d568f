package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is matched by every ParseError via errors.Is.
var ErrSyntax = errors.New("invalid pattern syntax")

// ParseError reports a token that is neither a hex byte nor a wildcard.
type ParseError struct {
	Token string // offending token
	Index int    // token position, 0-based
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid pattern token %q at position %d", e.Token, e.Index)
}

// Is makes errors.Is(err, ErrSyntax) true for parse errors.
func (e *ParseError) Is(target error) bool {
	return target == ErrSyntax
}

// Parse parses the textual pattern form. Tokens are separated by any
// whitespace; "?" and "??" denote wildcards and anything else must be a
// hex byte value (one or two digits, case-insensitive).
func Parse(s string) (Pattern, error) {
	tokens := strings.Fields(s)
	p := Pattern{
		bytes: make([]byte, len(tokens)),
		wild:  make([]bool, len(tokens)),
	}
	for i, tok := range tokens {
		if tok == "?" || tok == "??" {
			p.wild[i] = true
			continue
		}
		v, err := parseHexByte(tok)
		if err != nil {
			return Pattern{}, &ParseError{Token: tok, Index: i}
		}
		p.bytes[i] = v
	}
	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseAll parses every string, stopping at the first error.
func ParseAll(strs []string) ([]Pattern, error) {
	out := make([]Pattern, len(strs))
	for i, s := range strs {
		p, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func parseHexByte(tok string) (byte, error) {
	// ParseUint alone would accept "+f" and "0x", neither is a byte token.
	if len(tok) == 0 || len(tok) > 2 {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(tok); i++ {
		if !isHexDigit(tok[i]) {
			return 0, strconv.ErrSyntax
		}
	}
	v, err := strconv.ParseUint(tok, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
