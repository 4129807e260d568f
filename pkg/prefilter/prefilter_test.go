package prefilter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

func sigs(patterns ...string) []*types.Signature {
	out := make([]*types.Signature, len(patterns))
	for i, p := range patterns {
		out[i] = &types.Signature{ID: p, Pattern: pattern.MustParse(p)}
	}
	return out
}

func TestPrefilter_MatchingAnchors(t *testing.T) {
	pf := New(sigs("7F 45 4C 46 ?? ?? 01", "4D 5A 90 00", "? 0F 05"))

	// ELF anchor present, MZ absent, 0F 05 present.
	content := []byte{0x00, 0x7F, 0x45, 0x4C, 0x46, 0x02, 0x0F, 0x05}
	assert.Equal(t, []int{0, 2}, pf.Filter(content))
}

func TestPrefilter_NoMatches(t *testing.T) {
	pf := New(sigs("7F 45 4C 46", "4D 5A"))
	assert.Empty(t, pf.Filter([]byte("plain text only")))
	assert.Empty(t, pf.Filter(nil))
}

func TestPrefilter_SharedAnchor(t *testing.T) {
	pf := New(sigs("E8 ? ? ? ? C3", "E8 ? ? ? ? 90", "?? E8"))
	assert.Equal(t, 1, pf.Anchors())
	assert.Equal(t, 3, pf.Len())
	assert.Equal(t, []int{0, 1, 2}, pf.Filter([]byte{0x01, 0xE8}))
}

func TestPrefilter_NestedAnchors(t *testing.T) {
	pf := New(sigs("0F 05", "4C 8B D1 B8 ?? ?? 00 00 0F 05", "B8"))
	assert.Equal(t, []int{0, 2}, pf.Filter([]byte{0x90, 0xB8, 0x0F, 0x05}))
	assert.Equal(t, []int{0, 1, 2}, pf.Filter([]byte{0x4C, 0x8B, 0xD1, 0xB8, 0x0F, 0x05}))
}

func TestPrefilter_NoKnownBytes(t *testing.T) {
	pf := New(sigs("?? ??", ""))
	assert.Equal(t, 0, pf.Anchors())
	assert.Nil(t, pf.Filter([]byte{0x00, 0x01}))
}

func TestPrefilter_ConcurrentFilter(t *testing.T) {
	pf := New(sigs("AA BB", "CC"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := []byte{0xAA, 0xBB}
			want := []int{0}
			if i%2 == 0 {
				content = append(content, 0xCC)
				want = []int{0, 1}
			}
			for j := 0; j < 100; j++ {
				assert.Equal(t, want, pf.Filter(content))
			}
		}(i)
	}
	wg.Wait()
}
