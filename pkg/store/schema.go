package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// dialect holds what differs between the SQL backends.
type dialect struct {
	name   string
	driver string
	serial string // auto-incrementing primary key column type
	bytes  string // binary column type
	bigint string
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
		bytes:  "BLOB",
		bigint: "INTEGER",
	}
	postgresDialect = dialect{
		name:   "postgres",
		driver: "pgx",
		serial: "BIGSERIAL PRIMARY KEY",
		bytes:  "BYTEA",
		bigint: "BIGINT",
	}
)

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if d.name != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnore builds an insert that skips rows violating a unique key.
func (d dialect) insertIgnore(table string, cols ...string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
	if d.name == "postgres" {
		return d.rebind(q + " ON CONFLICT DO NOTHING")
	}
	return strings.Replace(q, "INSERT INTO", "INSERT OR IGNORE INTO", 1)
}

// expand fills the type placeholders of a CREATE statement.
func (d dialect) expand(stmt string) string {
	return strings.NewReplacer(
		"{{serial}}", d.serial,
		"{{bytes}}", d.bytes,
		"{{bigint}}", d.bigint,
	).Replace(stmt)
}

var schemaStatements = []struct {
	name string
	stmt string
}{
	{"schema_version", `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`},
	{"blobs", `
		CREATE TABLE IF NOT EXISTS blobs (
			id TEXT PRIMARY KEY NOT NULL,
			size {{bigint}} NOT NULL
		)`},
	{"signatures", `
		CREATE TABLE IF NOT EXISTS signatures (
			id TEXT PRIMARY KEY NOT NULL,
			name TEXT NOT NULL,
			pattern TEXT NOT NULL,
			structural_id TEXT NOT NULL
		)`},
	{"matches", `
		CREATE TABLE IF NOT EXISTS matches (
			id {{serial}},
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			signature_id TEXT NOT NULL,
			signature_name TEXT NOT NULL DEFAULT '',
			structural_id TEXT NOT NULL UNIQUE,
			finding_id TEXT NOT NULL,
			offset_start {{bigint}} NOT NULL,
			offset_end {{bigint}} NOT NULL,
			snippet_before {{bytes}},
			snippet_matching {{bytes}},
			snippet_after {{bytes}}
		)`},
	{"findings", `
		CREATE TABLE IF NOT EXISTS findings (
			id TEXT PRIMARY KEY NOT NULL,
			signature_id TEXT NOT NULL,
			content {{bytes}}
		)`},
	{"provenance", `
		CREATE TABLE IF NOT EXISTS provenance (
			id {{serial}},
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			kind TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			repo_path TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL DEFAULT '',
			archive_path TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT '',
			account TEXT NOT NULL DEFAULT '',
			container TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '',
			UNIQUE(blob_id, kind, path, repo_path, commit_hash, archive_path, account, container, payload)
		)`},
	{"provenance index", `
		CREATE INDEX IF NOT EXISTS idx_provenance_blob_id ON provenance(blob_id)`},
	{"matches index", `
		CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)`},
	{"scans", `
		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY NOT NULL,
			target TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL DEFAULT '',
			blobs {{bigint}} NOT NULL DEFAULT 0,
			bytes {{bigint}} NOT NULL DEFAULT 0,
			matches {{bigint}} NOT NULL DEFAULT 0
		)`},
}

// createSchema creates the database schema if it does not exist.
func createSchema(db *sql.DB, d dialect) error {
	for _, s := range schemaStatements {
		if _, err := db.Exec(d.expand(s.stmt)); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("reading schema_version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(d.rebind("INSERT INTO schema_version (version) VALUES (?)"), SchemaVersion); err != nil {
			return fmt.Errorf("writing schema_version: %w", err)
		}
	}
	return nil
}
