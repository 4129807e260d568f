package enum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

func skipIfNoGit(t *testing.T) {
	t.Helper()
	if !gitBinaryAvailable() {
		t.Skip("git binary not on PATH")
	}
}

func TestParseRevListLine(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"

	entry, ok := parseRevListLine(hash + " dir/file.bin")
	require.True(t, ok)
	assert.Equal(t, "dir/file.bin", entry.path)
	assert.Equal(t, byte(0x01), entry.hash[0])
	assert.Equal(t, byte(0x67), entry.hash[19])

	_, ok = parseRevListLine(hash)
	assert.False(t, ok, "commits carry no path")

	_, ok = parseRevListLine("zz23456789abcdef0123456789abcdef01234567 x")
	assert.False(t, ok)
}

func TestNativeGitEnumerator_History(t *testing.T) {
	skipIfNoGit(t)

	r := newTestRepo(t)
	base := r.commit("v1", map[string][]byte{"fw.bin": []byte("version one"), "lib/raw": {0x00, 0x01}})
	r.commit("v2", map[string][]byte{"fw.bin": []byte("version two")})
	r.branch("side", base)

	e := NewGitEnumerator(Config{Root: r.dir})
	e.WalkAll = true

	var contents []string
	err := e.Enumerate(context.Background(), func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		// Object hashes and computed BlobIDs agree.
		assert.Equal(t, types.ComputeBlobID(content), blobID)
		gp, ok := prov.(types.GitProvenance)
		assert.True(t, ok)
		assert.Nil(t, gp.Commit)
		contents = append(contents, string(content))
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"version one", "version two", "\x00\x01"}, contents)
}

func TestNativeGitEnumerator_MaxFileSize(t *testing.T) {
	skipIfNoGit(t)

	r := newTestRepo(t)
	r.commit("initial", map[string][]byte{"small": []byte("tiny"), "large": make([]byte, 4096)})

	e := NewGitEnumerator(Config{Root: r.dir, MaxFileSize: 100})
	e.WalkAll = true

	c := newCollector()
	require.NoError(t, e.Enumerate(context.Background(), c.callback))
	assert.Equal(t, []string{"small"}, c.sorted())
}

func TestNativeGitEnumerator_ContextCancelled(t *testing.T) {
	skipIfNoGit(t)

	r := newTestRepo(t)
	r.commit("initial", map[string][]byte{"a": {0x01}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewGitEnumerator(Config{Root: r.dir})
	e.WalkAll = true
	assert.Error(t, e.Enumerate(ctx, newCollector().callback))
}
