package enum

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// staticEnumerator yields fixed contents, each under its own file path.
type staticEnumerator map[string][]byte

func (s staticEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	for _, path := range sortedKeys(s) {
		if err := ctx.Err(); err != nil {
			return err
		}
		content := s[path]
		if err := callback(content, types.ComputeBlobID(content), types.FileProvenance{FilePath: path}); err != nil {
			return err
		}
	}
	return nil
}

func collectPaths(t *testing.T, e Enumerator) []string {
	t.Helper()
	var paths []string
	err := e.Enumerate(context.Background(), func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		assert.Equal(t, types.ComputeBlobID(content), blobID)
		paths = append(paths, prov.Path())
		return nil
	})
	require.NoError(t, err)
	return paths
}

func TestCombinedEnumerator(t *testing.T) {
	elf := []byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01}
	pe := []byte{0x4D, 0x5A, 0x90, 0x00}

	tests := []struct {
		name        string
		enumerators []Enumerator
		want        []string
	}{
		{
			name: "no enumerators",
			want: nil,
		},
		{
			name:        "single enumerator passes everything",
			enumerators: []Enumerator{staticEnumerator{"a.so": elf, "b.exe": pe}},
			want:        []string{"a.so", "b.exe"},
		},
		{
			name: "later copy of the same bytes is dropped",
			enumerators: []Enumerator{
				staticEnumerator{"tree/a.so": elf},
				staticEnumerator{"history/a.so": elf, "history/b.exe": pe},
			},
			want: []string{"tree/a.so", "history/b.exe"},
		},
		{
			name: "duplicates inside one enumerator are dropped too",
			enumerators: []Enumerator{
				staticEnumerator{"a.so": elf, "copy.so": elf},
			},
			want: []string{"a.so"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectPaths(t, NewCombinedEnumerator(tt.enumerators...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombinedEnumerator_OnDuplicate(t *testing.T) {
	elf := []byte{0x7F, 0x45, 0x4C, 0x46}
	combined := NewCombinedEnumerator(
		staticEnumerator{"fw/a.bin": elf},
		staticEnumerator{"git/a.bin": elf, "git/b.bin": elf},
	)

	var dups []string
	combined.OnDuplicate = func(blobID types.BlobID, prov types.Provenance) error {
		assert.Equal(t, types.ComputeBlobID(elf), blobID)
		dups = append(dups, prov.Path())
		return nil
	}

	assert.Equal(t, []string{"fw/a.bin"}, collectPaths(t, combined))
	assert.Equal(t, []string{"git/a.bin", "git/b.bin"}, dups)

	boom := errors.New("store closed")
	combined.OnDuplicate = func(types.BlobID, types.Provenance) error { return boom }
	err := combined.Enumerate(context.Background(), func([]byte, types.BlobID, types.Provenance) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestCombinedEnumerator_CallbackError(t *testing.T) {
	boom := errors.New("disk full")
	second := staticEnumerator{"never.bin": []byte{1}}
	combined := NewCombinedEnumerator(staticEnumerator{"a.bin": []byte{0}}, second)

	calls := 0
	err := combined.Enumerate(context.Background(), func([]byte, types.BlobID, types.Provenance) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "later enumerators do not run after an error")
}

func TestCombinedEnumerator_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	combined := NewCombinedEnumerator(
		staticEnumerator{"a.bin": []byte{0}, "b.bin": []byte{1}},
		staticEnumerator{"c.bin": []byte{2}},
	)

	calls := 0
	err := combined.Enumerate(ctx, func([]byte, types.BlobID, types.Provenance) error {
		calls++
		cancel()
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got: %v", err)
	assert.Equal(t, 1, calls)
}
