// Package datastore manages a scan output directory: the results database
// plus an optional content-addressed copy of every matching blob.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/sigscan/pkg/store"
)

// DBName is the results database inside a datastore directory.
const DBName = "datastore.db"

// Datastore is an opened datastore directory.
type Datastore struct {
	Path  string      // directory path, e.g. "sigscan.ds"
	Store store.Store // results database
	Blobs *BlobStore  // nil unless Options.StoreBlobs
}

// Options configures datastore behavior.
type Options struct {
	StoreBlobs bool // keep a compressed copy of blobs with matches
}

// Open opens or creates a datastore directory.
func Open(path string, opts Options) (*Datastore, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore path is required")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating datastore directory: %w", err)
	}
	// Results should never be committed by accident.
	if err := os.WriteFile(filepath.Join(path, ".gitignore"), []byte("*\n"), 0o644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	s, err := store.New(store.Config{Path: filepath.Join(path, DBName)})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	ds := &Datastore{Path: path, Store: s}
	if opts.StoreBlobs {
		root := filepath.Join(path, "blobs")
		if err := os.MkdirAll(root, 0o755); err != nil {
			s.Close()
			return nil, fmt.Errorf("creating blobs directory: %w", err)
		}
		ds.Blobs = &BlobStore{Root: root}
	} else if _, err := os.Stat(filepath.Join(path, "blobs")); err == nil {
		// Blobs from an earlier scan stay readable.
		ds.Blobs = &BlobStore{Root: filepath.Join(path, "blobs")}
	}
	return ds, nil
}

// ResolveDB maps a datastore directory to its database file. Files,
// postgres DSNs and ":memory:" are returned unchanged.
func ResolveDB(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, DBName)
	}
	return path
}

// Close closes the datastore and releases resources.
func (d *Datastore) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
