package datastore

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

func TestBlobStore_RoundTrip(t *testing.T) {
	bs := &BlobStore{Root: t.TempDir()}
	content := bytes.Repeat([]byte("\x7FELF\x02\x01\x01\x00"), 512)

	id, err := bs.Store(content)
	require.NoError(t, err)
	assert.Equal(t, types.ComputeBlobID(content), id)
	assert.True(t, bs.Exists(id))

	hexID := id.Hex()
	path := filepath.Join(bs.Root, hexID[:2], hexID[2:]+".zst")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(content)), "stored compressed")

	got, err := bs.Get(id)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlobStore_Idempotent(t *testing.T) {
	bs := &BlobStore{Root: t.TempDir()}

	id1, err := bs.Store([]byte("same"))
	require.NoError(t, err)
	id2, err := bs.Store([]byte("same"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	entries, err := os.ReadDir(filepath.Join(bs.Root, id1.Hex()[:2]))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestBlobStore_GetMissing(t *testing.T) {
	bs := &BlobStore{Root: t.TempDir()}
	id := types.ComputeBlobID([]byte("absent"))

	assert.False(t, bs.Exists(id))
	_, err := bs.Get(id)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestBlobStore_Concurrent(t *testing.T) {
	bs := &BlobStore{Root: t.TempDir()}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := bs.Store([]byte{byte(i % 2), 0xFF})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		got, err := bs.Get(types.ComputeBlobID([]byte{byte(i), 0xFF}))
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i), 0xFF}, got)
	}
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scan.ds")

	ds, err := Open(dir, Options{StoreBlobs: true})
	require.NoError(t, err)
	require.NotNil(t, ds.Blobs)
	assert.FileExists(t, filepath.Join(dir, ".gitignore"))
	assert.FileExists(t, filepath.Join(dir, DBName))
	require.NoError(t, ds.Close())

	// Reopening without StoreBlobs still exposes earlier blobs.
	ds, err = Open(dir, Options{})
	require.NoError(t, err)
	assert.NotNil(t, ds.Blobs)
	require.NoError(t, ds.Close())

	_, err = Open("", Options{})
	assert.Error(t, err)
}

func TestResolveDB(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, DBName), ResolveDB(dir))
	assert.Equal(t, "results.db", ResolveDB("results.db"))
	assert.Equal(t, ":memory:", ResolveDB(":memory:"))
	assert.Equal(t, "postgres://localhost/x", ResolveDB("postgres://localhost/x"))
}
