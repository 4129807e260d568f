package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is one signature occurrence in one blob.
type Match struct {
	BlobID        BlobID
	StructuralID  string // SHA-1(signature_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
	FindingID     string // SHA-1(signature_structural_id + '\0' + matched bytes)
	SignatureID   string // e.g., "sig.elf.header"
	SignatureName string
	Location      Location
	Snippet       Snippet
}

// ComputeStructuralID identifies the match by signature, blob and span.
func (m *Match) ComputeStructuralID(sigStructuralID string) string {
	h := sha1.New()

	h.Write([]byte(sigStructuralID))
	h.Write([]byte{0})

	h.Write(m.BlobID[:])
	h.Write([]byte{0})

	h.Write([]byte(strconv.FormatInt(m.Location.Offset.Start, 10)))
	h.Write([]byte{0})

	h.Write([]byte(strconv.FormatInt(m.Location.Offset.End, 10)))

	return hex.EncodeToString(h.Sum(nil))
}
