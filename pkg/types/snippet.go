package types

import "encoding/hex"

// Snippet holds the matched bytes and the context around them.
type Snippet struct {
	Before   []byte
	Matching []byte
	After    []byte
}

// Hex renders the snippet as lowercase hex with the match bracketed,
// e.g. "0010[482e99]482e".
func (s Snippet) Hex() string {
	return hex.EncodeToString(s.Before) + "[" + hex.EncodeToString(s.Matching) + "]" + hex.EncodeToString(s.After)
}
