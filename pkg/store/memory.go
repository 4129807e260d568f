package store

import (
	"sort"
	"sync"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// MemoryStore implements Store using in-memory data structures. It backs
// the serve mode and embedded scanning, where nothing outlives the process.
type MemoryStore struct {
	mu           sync.RWMutex
	blobs        map[types.BlobID]int64
	signatures   map[string]*types.Signature
	matches      []*types.Match
	matchIDs     map[string]struct{} // structural IDs already stored
	findings     map[string]*types.Finding
	findingOrder []string
	provenance   map[types.BlobID][]types.Provenance
	scans        map[string]*ScanRun
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[types.BlobID]int64),
		signatures: make(map[string]*types.Signature),
		matchIDs:   make(map[string]struct{}),
		findings:   make(map[string]*types.Finding),
		provenance: make(map[types.BlobID][]types.Provenance),
		scans:      make(map[string]*ScanRun),
	}
}

// AddBlob stores a blob record. Repeated calls are no-ops.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; !exists {
		m.blobs[id] = size
	}
	return nil
}

// AddSignature records a signature.
func (m *MemoryStore) AddSignature(s *types.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.signatures[s.ID]; !exists {
		m.signatures[s.ID] = s
	}
	return nil
}

// AddMatch stores a match record unless its structural ID is known.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.matchIDs[match.StructuralID]; exists {
		return nil
	}
	m.matchIDs[match.StructuralID] = struct{}{}
	m.matches = append(m.matches, match)
	return nil
}

// AddFinding stores a finding (deduplicated). Matches are attached when
// findings are read back.
func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findings[f.ID]; exists {
		return nil
	}
	m.findings[f.ID] = &types.Finding{ID: f.ID, SignatureID: f.SignatureID, Content: f.Content}
	m.findingOrder = append(m.findingOrder, f.ID)
	return nil
}

// AddProvenance associates provenance with a blob. Identical provenance is
// stored once.
func (m *MemoryStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	row, err := flattenProvenance(prov)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.provenance[blobID] {
		if existing, _ := flattenProvenance(p); existing == row {
			return nil
		}
	}
	m.provenance[blobID] = append(m.provenance[blobID], prov)
	return nil
}

// AddScan inserts or updates a scan run.
func (m *MemoryStore) AddScan(run *ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	m.scans[run.ID.String()] = &copied
	return nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	return result, nil
}

// GetAllMatches retrieves all matches in insertion order.
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Match, len(m.matches))
	copy(result, m.matches)
	return result, nil
}

// GetFindings retrieves all findings with their matches, ordered by ID.
func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := append([]string{}, m.findingOrder...)
	sort.Strings(ids)

	result := make([]*types.Finding, 0, len(ids))
	byID := make(map[string]*types.Finding, len(ids))
	for _, id := range ids {
		f := *m.findings[id]
		f.Matches = nil
		result = append(result, &f)
		byID[id] = &f
	}
	attachMatches(byID, m.matches)
	return result, nil
}

// GetProvenance retrieves every provenance recorded for a blob.
func (m *MemoryStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[blobID]
	result := make([]types.Provenance, len(provs))
	copy(result, provs)
	return result, nil
}

// GetSignatures retrieves the recorded signatures ordered by ID.
func (m *MemoryStore) GetSignatures() ([]*types.Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Signature, 0, len(m.signatures))
	for _, s := range m.signatures {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetScans retrieves scan runs, oldest first.
func (m *MemoryStore) GetScans() ([]*ScanRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ScanRun, 0, len(m.scans))
	for _, run := range m.scans {
		copied := *run
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.Before(result[j].StartedAt) })
	return result, nil
}

// FindingExists checks if a finding with this ID exists.
func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.findings[id]
	return exists, nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id]
	return exists, nil
}

// BlobCount returns the number of distinct blobs stored.
func (m *MemoryStore) BlobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
