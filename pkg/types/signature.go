package types

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// Signature is a named wildcard byte pattern with metadata.
type Signature struct {
	ID               string          // e.g., "sig.elf.header"
	Name             string          // human-readable name
	Pattern          pattern.Pattern // byte pattern with wildcards
	StructuralID     string          // SHA-1 of canonical pattern text (computed)
	Description      string
	Examples         [][]byte // haystacks that must match
	NegativeExamples [][]byte // haystacks that must not match
	References       []string
	Categories       []string
}

// ComputeStructuralID hashes the canonical text of the pattern, so two
// signatures spelling the same pattern differently ("?" vs "??", case)
// share an ID.
func (s *Signature) ComputeStructuralID() string {
	h := sha1.New()
	h.Write([]byte(s.Pattern.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureSet groups signatures by ID.
type SignatureSet struct {
	ID           string
	Name         string
	Description  string
	SignatureIDs []string
}
