package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch_ComputeStructuralID(t *testing.T) {
	blobID := ComputeBlobID([]byte("test content"))

	match := Match{
		BlobID:      blobID,
		SignatureID: "sig.elf.header",
		Location:    Location{Offset: OffsetSpan{Start: 10, End: 17}},
	}

	sigStructuralID := "sig_struct_id_456"
	id := match.ComputeStructuralID(sigStructuralID)
	assert.Len(t, id, 40)

	// Name and ID fields do not take part.
	same := Match{BlobID: blobID, SignatureName: "other", Location: match.Location}
	assert.Equal(t, id, same.ComputeStructuralID(sigStructuralID))

	tests := []struct {
		name  string
		match Match
		sigID string
	}{
		{name: "different start", match: Match{BlobID: blobID, Location: Location{Offset: OffsetSpan{Start: 11, End: 17}}}, sigID: sigStructuralID},
		{name: "different end", match: Match{BlobID: blobID, Location: Location{Offset: OffsetSpan{Start: 10, End: 18}}}, sigID: sigStructuralID},
		{name: "different blob", match: Match{BlobID: ComputeBlobID([]byte("x")), Location: match.Location}, sigID: sigStructuralID},
		{name: "different signature", match: match, sigID: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, id, tt.match.ComputeStructuralID(tt.sigID))
		})
	}
}

func TestMatch_StartEndSeparated(t *testing.T) {
	// 1|23 and 12|3 must not collide.
	blobID := ComputeBlobID(nil)
	a := Match{BlobID: blobID, Location: Location{Offset: OffsetSpan{Start: 1, End: 23}}}
	b := Match{BlobID: blobID, Location: Location{Offset: OffsetSpan{Start: 12, End: 3}}}
	assert.NotEqual(t, a.ComputeStructuralID("s"), b.ComputeStructuralID("s"))
}
