package datastore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// ErrBlobNotFound is returned by Get for unknown IDs.
var ErrBlobNotFound = errors.New("blob not found")

// Shared coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// BlobStore keeps zstd-compressed blobs addressed by BlobID, laid out like
// git loose objects: blobs/ab/cdef....zst.
type BlobStore struct {
	Root string
}

// Store writes content if it is not stored yet and returns its ID.
func (b *BlobStore) Store(content []byte) (types.BlobID, error) {
	id := types.ComputeBlobID(content)
	path := b.blobPath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.BlobID{}, fmt.Errorf("creating blob directory: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return types.BlobID{}, fmt.Errorf("writing blob: %w", err)
	}
	_, werr := tmp.Write(encoder.EncodeAll(content, nil))
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		return types.BlobID{}, fmt.Errorf("writing blob: %w", errors.Join(werr, cerr))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return types.BlobID{}, fmt.Errorf("renaming blob: %w", err)
	}
	return id, nil
}

// Get returns the content of a stored blob.
func (b *BlobStore) Get(id types.BlobID) ([]byte, error) {
	data, err := os.ReadFile(b.blobPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}

	content, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing blob %s: %w", id.Hex(), err)
	}
	return content, nil
}

// Exists checks if a blob exists in storage.
func (b *BlobStore) Exists(id types.BlobID) bool {
	_, err := os.Stat(b.blobPath(id))
	return err == nil
}

func (b *BlobStore) blobPath(id types.BlobID) string {
	hexID := id.Hex()
	return filepath.Join(b.Root, hexID[:2], hexID[2:]+".zst")
}
