package store

import (
	"fmt"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Record writes one scanned blob: the blob row, its provenance, its
// matches and the findings they belong to.
func Record(s Store, blobID types.BlobID, size int64, prov types.Provenance, matches []*types.Match) error {
	if err := s.AddBlob(blobID, size); err != nil {
		return err
	}
	if prov != nil {
		if err := s.AddProvenance(blobID, prov); err != nil {
			return err
		}
	}

	for _, m := range matches {
		if err := s.AddMatch(m); err != nil {
			return fmt.Errorf("match %s: %w", m.StructuralID, err)
		}
		f := &types.Finding{ID: m.FindingID, SignatureID: m.SignatureID, Content: m.Snippet.Matching}
		if err := s.AddFinding(f); err != nil {
			return fmt.Errorf("finding %s: %w", f.ID, err)
		}
	}
	return nil
}
