// Package prefilter decides cheaply which signatures can possibly match a
// blob, so blobs where none can are never handed to the searcher.
package prefilter

import (
	"sort"

	"github.com/cloudflare/ahocorasick"

	"github.com/praetorian-inc/sigscan/pkg/search"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Prefilter indexes the anchor of every signature. A signature can only
// match content that contains its anchor.
type Prefilter struct {
	matcher   *ahocorasick.Matcher
	anchors   [][]byte // distinct anchors, dictionary order
	anchorSig [][]int  // anchor index -> signature indices
	size      int
}

// New builds a prefilter over sigs. Signatures without known bytes have
// no anchor and are never reported.
func New(sigs []*types.Signature) *Prefilter {
	pf := &Prefilter{size: len(sigs)}

	pos := make(map[string]int)
	for i, s := range sigs {
		anchor := search.Anchor(s.Pattern)
		if len(anchor) == 0 {
			continue
		}
		ai, ok := pos[string(anchor)]
		if !ok {
			ai = len(pf.anchors)
			pos[string(anchor)] = ai
			pf.anchors = append(pf.anchors, anchor)
			pf.anchorSig = append(pf.anchorSig, nil)
		}
		pf.anchorSig[ai] = append(pf.anchorSig[ai], i)
	}

	if len(pf.anchors) > 0 {
		pf.matcher = ahocorasick.NewMatcher(pf.anchors)
	}
	return pf
}

// Filter returns, in ascending order, the indices of signatures whose
// anchor occurs in content. Safe for concurrent use.
func (pf *Prefilter) Filter(content []byte) []int {
	if pf.matcher == nil {
		return nil
	}

	var result []int
	for _, ai := range pf.matcher.MatchThreadSafe(content) {
		result = append(result, pf.anchorSig[ai]...)
	}
	sort.Ints(result)
	return result
}

// Len returns the number of signatures the prefilter was built over.
func (pf *Prefilter) Len() int {
	return pf.size
}

// Anchors returns the number of distinct anchors indexed.
func (pf *Prefilter) Anchors() int {
	return len(pf.anchors)
}
