package enum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// collector gathers blobs from an enumerator that may call back
// concurrently.
type collector struct {
	mu    sync.Mutex
	paths []string
	blobs map[string][]byte
	provs map[string]types.Provenance
}

func newCollector() *collector {
	return &collector{blobs: make(map[string][]byte), provs: make(map[string]types.Provenance)}
}

func (c *collector) callback(content []byte, blobID types.BlobID, prov types.Provenance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if blobID != types.ComputeBlobID(content) {
		return errors.New("blob ID mismatch for " + prov.Path())
	}
	c.paths = append(c.paths, prov.Path())
	c.blobs[prov.Path()] = content
	c.provs[prov.Path()] = prov
	return nil
}

func (c *collector) sorted() []string {
	out := append([]string{}, c.paths...)
	sort.Strings(out)
	return out
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
}

func TestFilesystemEnumerator(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"app.exe":         []byte("MZ\x90\x00\x03\x00"),
		"lib/libfoo.so":   elfPayload,
		"lib/nested/data": {0x00, 0x01, 0x02},
	})

	c := newCollector()
	err := NewFilesystemEnumerator(Config{Root: root, Workers: 2}).Enumerate(context.Background(), c.callback)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "app.exe"),
		filepath.Join(root, "lib", "libfoo.so"),
		filepath.Join(root, "lib", "nested", "data"),
	}, c.sorted())

	// Binary files are scanned, not skipped.
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, c.blobs[filepath.Join(root, "lib", "nested", "data")])

	prov, ok := c.provs[filepath.Join(root, "app.exe")].(types.FileProvenance)
	require.True(t, ok)
	assert.Equal(t, int64(6), prov.Size)
}

func TestFilesystemEnumerator_SingleFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"image.bin": elfPayload})

	c := newCollector()
	err := NewFilesystemEnumerator(Config{Root: filepath.Join(root, "image.bin")}).Enumerate(context.Background(), c.callback)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "image.bin")}, c.sorted())
}

func TestFilesystemEnumerator_MissingRoot(t *testing.T) {
	err := NewFilesystemEnumerator(Config{Root: filepath.Join(t.TempDir(), "nope")}).
		Enumerate(context.Background(), newCollector().callback)
	assert.Error(t, err)
}

func TestFilesystemEnumerator_HiddenFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"visible.bin":      {0x01},
		".hidden.bin":      {0x02},
		".cache/inner.bin": {0x03},
	})

	c := newCollector()
	require.NoError(t, NewFilesystemEnumerator(Config{Root: root}).Enumerate(context.Background(), c.callback))
	assert.Equal(t, []string{filepath.Join(root, "visible.bin")}, c.sorted())

	c = newCollector()
	require.NoError(t, NewFilesystemEnumerator(Config{Root: root, IncludeHidden: true}).Enumerate(context.Background(), c.callback))
	assert.Len(t, c.paths, 3)
}

func TestFilesystemEnumerator_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"small.bin": make([]byte, 10),
		"large.bin": make([]byte, 1000),
	})

	c := newCollector()
	require.NoError(t, NewFilesystemEnumerator(Config{Root: root, MaxFileSize: 100}).Enumerate(context.Background(), c.callback))
	assert.Equal(t, []string{filepath.Join(root, "small.bin")}, c.sorted())
}

func TestFilesystemEnumerator_Gitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		".gitignore":     []byte("build/\n*.o\n"),
		"main.bin":       {0x01},
		"main.o":         {0x02},
		"build/out.bin":  {0x03},
		"src/helper.bin": {0x04},
	})

	c := newCollector()
	require.NoError(t, NewFilesystemEnumerator(Config{Root: root}).Enumerate(context.Background(), c.callback))
	assert.Equal(t, []string{
		filepath.Join(root, "main.bin"),
		filepath.Join(root, "src", "helper.bin"),
	}, c.sorted())
}

func TestFilesystemEnumerator_Symlinks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"real.bin": {0x01}})
	if err := os.Symlink(filepath.Join(root, "real.bin"), filepath.Join(root, "link.bin")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	c := newCollector()
	require.NoError(t, NewFilesystemEnumerator(Config{Root: root}).Enumerate(context.Background(), c.callback))
	assert.Equal(t, []string{filepath.Join(root, "real.bin")}, c.sorted())

	c = newCollector()
	require.NoError(t, NewFilesystemEnumerator(Config{Root: root, FollowSymlinks: true}).Enumerate(context.Background(), c.callback))
	assert.Len(t, c.paths, 2)
}

func TestFilesystemEnumerator_Extract(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"bundle.zip": buildZip(t, map[string][]byte{"payload/a.so": elfPayload}),
		"fw.bin.gz":  compressGzip(t, elfPayload),
	})

	c := newCollector()
	cfg := Config{Root: root, Extract: []string{"zip"}}
	require.NoError(t, NewFilesystemEnumerator(cfg).Enumerate(context.Background(), c.callback))
	assert.Len(t, c.paths, 3, "two files plus one zip member")

	member := filepath.Join(root, "bundle.zip") + ":payload/a.so"
	require.Contains(t, c.blobs, member)
	assert.Equal(t, elfPayload, c.blobs[member])

	prov, ok := c.provs[member].(types.ArchiveProvenance)
	require.True(t, ok)
	assert.Equal(t, FormatZip, prov.Format)
	assert.Equal(t, "payload/a.so", prov.MemberPath)

	c = newCollector()
	cfg.Extract = []string{"all"}
	require.NoError(t, NewFilesystemEnumerator(cfg).Enumerate(context.Background(), c.callback))
	assert.Contains(t, c.blobs, filepath.Join(root, "fw.bin.gz")+":fw.bin")
}

func TestFilesystemEnumerator_CallbackError(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"a.bin": {0x01}, "b.bin": {0x02}})

	stop := errors.New("stop")
	err := NewFilesystemEnumerator(Config{Root: root}).Enumerate(context.Background(), func([]byte, types.BlobID, types.Provenance) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}

func TestFilesystemEnumerator_ContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"a.bin": {0x01}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFilesystemEnumerator(Config{Root: root}).Enumerate(ctx, newCollector().callback)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{".git", true},
		{".hidden", true},
		{"visible", false},
		{".", false},
		{"..", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isHidden(tt.name), tt.name)
	}
}
