package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the SQLite datastores to merge from.
	SourcePaths []string
	// DestPath is the destination SQLite file, created if missing.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	BlobsMerged      int
	SignaturesMerged int
	MatchesMerged    int
	FindingsMerged   int
	ProvenanceMerged int
	ScansMerged      int
	SourcesProcessed int
}

// mergeTables lists what is copied, in foreign key order. Surrogate id
// columns are left out so the destination assigns its own.
var mergeTables = []struct {
	table string
	cols  []string
	count func(*MergeStats) *int
}{
	{"blobs", []string{"id", "size"}, func(s *MergeStats) *int { return &s.BlobsMerged }},
	{"signatures", []string{"id", "name", "pattern", "structural_id"}, func(s *MergeStats) *int { return &s.SignaturesMerged }},
	{"findings", []string{"id", "signature_id", "content"}, func(s *MergeStats) *int { return &s.FindingsMerged }},
	{"matches", strings.Split(strings.ReplaceAll(matchColumns, " ", ""), ","), func(s *MergeStats) *int { return &s.MatchesMerged }},
	{"provenance", []string{"blob_id", "kind", "path", "repo_path", "commit_hash", "archive_path", "format", "account", "container", "payload"}, func(s *MergeStats) *int { return &s.ProvenanceMerged }},
	{"scans", []string{"id", "target", "started_at", "finished_at", "blobs", "bytes", "matches"}, func(s *MergeStats) *int { return &s.ScansMerged }},
}

// Merge combines multiple datastores into one. Rows already present in the
// destination, by primary or unique key, are skipped.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	dest, err := NewSQLite(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dest.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		if err := mergeFrom(dest, sourcePath, stats); err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.SourcesProcessed++
	}
	return stats, nil
}

// mergeFrom copies every table of one source inside a single transaction.
func mergeFrom(dest *SQLStore, sourcePath string, stats *MergeStats) error {
	source, err := sql.Open(sqliteDialect.driver, sourcePath)
	if err != nil {
		return fmt.Errorf("opening source database: %w", err)
	}
	defer source.Close()

	tx, err := dest.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range mergeTables {
		n, err := copyTable(tx, source, dest.d, t.table, t.cols)
		if err != nil {
			return fmt.Errorf("merging %s: %w", t.table, err)
		}
		*t.count(stats) += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// copyTable streams rows from source into tx and returns how many were
// new.
func copyTable(tx *sql.Tx, source *sql.DB, d dialect, table string, cols []string) (int, error) {
	rows, err := source.Query(fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(d.insertIgnore(table, cols...))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
