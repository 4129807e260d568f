package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// SQLStore implements Store over database/sql. SQLite and PostgreSQL share
// one schema; only placeholders and a few column types differ.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// NewSQLite opens or creates a SQLite database file.
func NewSQLite(path string) (*SQLStore, error) {
	s, err := openSQL(sqliteDialect, path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// NewPostgres connects to a PostgreSQL database by DSN.
func NewPostgres(dsn string) (*SQLStore, error) {
	return openSQL(postgresDialect, dsn)
}

func openSQL(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := createSchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLStore{db: db, d: d}, nil
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// AddBlob stores a blob record.
func (s *SQLStore) AddBlob(id types.BlobID, size int64) error {
	if _, err := s.db.Exec(s.d.insertIgnore("blobs", "id", "size"), id.Hex(), size); err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddSignature records a signature.
func (s *SQLStore) AddSignature(sig *types.Signature) error {
	sid := sig.StructuralID
	if sid == "" {
		sid = sig.ComputeStructuralID()
	}
	_, err := s.db.Exec(s.d.insertIgnore("signatures", "id", "name", "pattern", "structural_id"),
		sig.ID, sig.Name, sig.Pattern.String(), sid)
	if err != nil {
		return fmt.Errorf("inserting signature: %w", err)
	}
	return nil
}

const matchColumns = "blob_id, signature_id, signature_name, structural_id, finding_id, offset_start, offset_end, snippet_before, snippet_matching, snippet_after"

// AddMatch stores a match record.
func (s *SQLStore) AddMatch(m *types.Match) error {
	_, err := s.db.Exec(s.d.insertIgnore("matches",
		"blob_id", "signature_id", "signature_name", "structural_id", "finding_id",
		"offset_start", "offset_end", "snippet_before", "snippet_matching", "snippet_after"),
		m.BlobID.Hex(),
		m.SignatureID,
		m.SignatureName,
		m.StructuralID,
		m.FindingID,
		m.Location.Offset.Start,
		m.Location.Offset.End,
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// AddFinding stores a finding (deduplicated). Its matches are stored
// separately through AddMatch.
func (s *SQLStore) AddFinding(f *types.Finding) error {
	_, err := s.db.Exec(s.d.insertIgnore("findings", "id", "signature_id", "content"), f.ID, f.SignatureID, f.Content)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// provenanceRow is the flattened column form of a Provenance.
type provenanceRow struct {
	kind, path, repoPath, commitHash, archivePath, format, account, container, payload string
}

func flattenProvenance(prov types.Provenance) (provenanceRow, error) {
	row := provenanceRow{kind: prov.Kind()}
	switch p := prov.(type) {
	case types.FileProvenance:
		row.path = p.FilePath
	case types.GitProvenance:
		row.repoPath = p.RepoPath
		row.path = p.BlobPath
		if p.Commit != nil {
			row.commitHash = p.Commit.CommitID
		}
	case types.ArchiveProvenance:
		row.archivePath = p.ArchivePath
		row.path = p.MemberPath
		row.format = p.Format
	case types.BlobProvenance:
		row.account = p.Account
		row.container = p.Container
		row.path = p.Name
	case types.ExtendedProvenance:
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return row, fmt.Errorf("marshaling provenance payload: %w", err)
		}
		row.payload = string(data)
	default:
		return row, fmt.Errorf("unknown provenance type: %T", prov)
	}
	return row, nil
}

func (r provenanceRow) provenance() (types.Provenance, error) {
	switch r.kind {
	case "file":
		return types.FileProvenance{FilePath: r.path}, nil
	case "git":
		p := types.GitProvenance{RepoPath: r.repoPath, BlobPath: r.path}
		if r.commitHash != "" {
			p.Commit = &types.CommitMetadata{CommitID: r.commitHash}
		}
		return p, nil
	case "archive":
		return types.ArchiveProvenance{ArchivePath: r.archivePath, MemberPath: r.path, Format: r.format}, nil
	case "blob":
		return types.BlobProvenance{Account: r.account, Container: r.container, Name: r.path}, nil
	case "extended":
		var payload map[string]interface{}
		if r.payload != "" {
			if err := json.Unmarshal([]byte(r.payload), &payload); err != nil {
				return nil, fmt.Errorf("unmarshaling provenance payload: %w", err)
			}
		}
		return types.ExtendedProvenance{Payload: payload}, nil
	default:
		return nil, fmt.Errorf("unknown provenance kind %q", r.kind)
	}
}

// AddProvenance associates provenance with a blob.
func (s *SQLStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	row, err := flattenProvenance(prov)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(s.d.insertIgnore("provenance",
		"blob_id", "kind", "path", "repo_path", "commit_hash", "archive_path", "format", "account", "container", "payload"),
		blobID.Hex(), row.kind, row.path, row.repoPath, row.commitHash, row.archivePath, row.format, row.account, row.container, row.payload)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

// AddScan inserts or updates a scan run.
func (s *SQLStore) AddScan(run *ScanRun) error {
	var finished string
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.Exec(s.d.rebind(`
		INSERT INTO scans (id, target, started_at, finished_at, blobs, bytes, matches)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = excluded.finished_at,
			blobs = excluded.blobs,
			bytes = excluded.bytes,
			matches = excluded.matches
	`),
		run.ID.String(),
		run.Target,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
		run.Blobs,
		run.Bytes,
		run.Matches,
	)
	if err != nil {
		return fmt.Errorf("upserting scan: %w", err)
	}
	return nil
}

// GetMatches retrieves matches for a blob.
func (s *SQLStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches("SELECT "+matchColumns+" FROM matches WHERE blob_id = ? ORDER BY id", blobID.Hex())
}

// GetAllMatches retrieves all matches in insertion order.
func (s *SQLStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches("SELECT " + matchColumns + " FROM matches ORDER BY id")
}

func (s *SQLStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []*types.Match
	for rows.Next() {
		var m types.Match
		var blobIDHex string
		err := rows.Scan(
			&blobIDHex,
			&m.SignatureID,
			&m.SignatureName,
			&m.StructuralID,
			&m.FindingID,
			&m.Location.Offset.Start,
			&m.Location.Offset.End,
			&m.Snippet.Before,
			&m.Snippet.Matching,
			&m.Snippet.After,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if m.BlobID, err = types.ParseBlobID(blobIDHex); err != nil {
			return nil, fmt.Errorf("parsing blob ID: %w", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// GetFindings retrieves all findings with their matches, ordered by ID.
func (s *SQLStore) GetFindings() ([]*types.Finding, error) {
	rows, err := s.db.Query("SELECT id, signature_id, content FROM findings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []*types.Finding
	byID := make(map[string]*types.Finding)
	for rows.Next() {
		var f types.Finding
		if err := rows.Scan(&f.ID, &f.SignatureID, &f.Content); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		findings = append(findings, &f)
		byID[f.ID] = &f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}

	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, err
	}
	attachMatches(byID, matches)
	return findings, nil
}

// GetProvenance retrieves every provenance recorded for a blob.
func (s *SQLStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	rows, err := s.db.Query(s.d.rebind(`
		SELECT kind, path, repo_path, commit_hash, archive_path, format, account, container, payload
		FROM provenance WHERE blob_id = ? ORDER BY id
	`), blobID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	var provs []types.Provenance
	for rows.Next() {
		var r provenanceRow
		if err := rows.Scan(&r.kind, &r.path, &r.repoPath, &r.commitHash, &r.archivePath, &r.format, &r.account, &r.container, &r.payload); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		p, err := r.provenance()
		if err != nil {
			return nil, err
		}
		provs = append(provs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return provs, nil
}

// GetSignatures retrieves the recorded signatures ordered by ID.
func (s *SQLStore) GetSignatures() ([]*types.Signature, error) {
	rows, err := s.db.Query("SELECT id, name, pattern, structural_id FROM signatures ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying signatures: %w", err)
	}
	defer rows.Close()

	var sigs []*types.Signature
	for rows.Next() {
		var sig types.Signature
		var text string
		if err := rows.Scan(&sig.ID, &sig.Name, &text, &sig.StructuralID); err != nil {
			return nil, fmt.Errorf("scanning signature: %w", err)
		}
		if sig.Pattern, err = pattern.Parse(text); err != nil {
			return nil, fmt.Errorf("signature %s: %w", sig.ID, err)
		}
		sigs = append(sigs, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signatures: %w", err)
	}
	return sigs, nil
}

// GetScans retrieves scan runs, oldest first.
func (s *SQLStore) GetScans() ([]*ScanRun, error) {
	rows, err := s.db.Query("SELECT id, target, started_at, finished_at, blobs, bytes, matches FROM scans ORDER BY started_at")
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var runs []*ScanRun
	for rows.Next() {
		var run ScanRun
		var id, started, finished string
		if err := rows.Scan(&id, &run.Target, &started, &finished, &run.Blobs, &run.Bytes, &run.Matches); err != nil {
			return nil, fmt.Errorf("scanning scan: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing scan ID: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing scan start: %w", err)
		}
		if finished != "" {
			if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
				return nil, fmt.Errorf("parsing scan end: %w", err)
			}
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scans: %w", err)
	}
	return runs, nil
}

// FindingExists checks if a finding with this ID exists.
func (s *SQLStore) FindingExists(id string) (bool, error) {
	return s.exists("SELECT COUNT(*) FROM findings WHERE id = ?", id)
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLStore) BlobExists(id types.BlobID) (bool, error) {
	return s.exists("SELECT COUNT(*) FROM blobs WHERE id = ?", id.Hex())
}

func (s *SQLStore) exists(query string, arg any) (bool, error) {
	var count int
	if err := s.db.QueryRow(s.d.rebind(query), arg).Scan(&count); err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// attachMatches appends each match to the finding it belongs to.
func attachMatches(byID map[string]*types.Finding, matches []*types.Match) {
	for _, m := range matches {
		if f, ok := byID[m.FindingID]; ok {
			f.Matches = append(f.Matches, m)
		}
	}
}
