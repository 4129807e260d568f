package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// Finding groups matches of one signature over identical bytes, wherever
// they were found.
type Finding struct {
	ID          string // SHA-1(signature_structural_id + '\0' + matched bytes)
	SignatureID string
	Content     []byte   // matched bytes shared by every match
	Matches     []*Match // matches belonging to this finding
}

// ComputeFindingID derives the finding ID from the signature and the bytes
// the pattern covered.
func ComputeFindingID(sigStructuralID string, matched []byte) string {
	h := sha1.New()
	h.Write([]byte(sigStructuralID))
	h.Write([]byte{0})
	h.Write(matched)
	return hex.EncodeToString(h.Sum(nil))
}
