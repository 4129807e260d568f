// Package store persists scan results: blobs, signatures, matches,
// findings, provenance and scan runs.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Store provides persistence for scan results.
// Implementations are safe for concurrent use.
type Store interface {
	// AddBlob stores a blob record.
	AddBlob(id types.BlobID, size int64) error

	// AddSignature records a signature used by a scan.
	AddSignature(s *types.Signature) error

	// AddMatch stores a match record. Matches are unique by StructuralID.
	AddMatch(m *types.Match) error

	// AddFinding stores a finding (deduplicated by ID).
	AddFinding(f *types.Finding) error

	// AddProvenance associates provenance with a blob.
	AddProvenance(blobID types.BlobID, prov types.Provenance) error

	// AddScan inserts or updates a scan run.
	AddScan(run *ScanRun) error

	// GetMatches retrieves matches for a blob.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves all matches (for JSON export).
	GetAllMatches() ([]*types.Match, error)

	// GetFindings retrieves all findings with their matches attached.
	GetFindings() ([]*types.Finding, error)

	// GetProvenance retrieves every provenance recorded for a blob.
	GetProvenance(blobID types.BlobID) ([]types.Provenance, error)

	// GetSignatures retrieves the recorded signatures. Only ID, Name,
	// Pattern and StructuralID round-trip.
	GetSignatures() ([]*types.Signature, error)

	// GetScans retrieves scan runs, oldest first.
	GetScans() ([]*ScanRun, error)

	// FindingExists checks if a finding with this ID exists.
	FindingExists(id string) (bool, error)

	// BlobExists checks if a blob has already been scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Close closes the database connection.
	Close() error
}

// ScanRun records one invocation of a scan.
type ScanRun struct {
	ID         uuid.UUID
	Target     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Blobs      int64
	Bytes      int64
	Matches    int64
}

// NewScanRun starts a run for target with a fresh random ID.
func NewScanRun(target string) *ScanRun {
	return &ScanRun{ID: uuid.New(), Target: target, StartedAt: time.Now().UTC()}
}

// Finish stamps the run's end time.
func (r *ScanRun) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Config for store initialization.
type Config struct {
	// Path is a SQLite file path, a postgres:// DSN, or ":memory:" for an
	// in-memory store.
	Path string
}

// New opens the store named by cfg.Path.
func New(cfg Config) (Store, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("path is required")
	case cfg.Path == ":memory:":
		return NewMemory(), nil
	case isPostgresDSN(cfg.Path):
		return NewPostgres(cfg.Path)
	default:
		return NewSQLite(cfg.Path)
	}
}

func isPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}
