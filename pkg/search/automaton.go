package search

import (
	"fmt"

	cfahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/coregx/ahocorasick"
)

// anchorGroup is one distinct anchor and every pattern that selected it.
type anchorGroup struct {
	anchor  []byte
	members []int // pattern indices, ascending
}

// anchorIndex splits the distinct anchors into those searched by the
// automaton and those searched as plain literals.
//
// The automaton reports at most one anchor per start position. When one
// anchor occurs inside another, the automaton may report only one of the
// two at a given position, so such related anchors are scanned separately.
// What remains in the automaton is containment-free, which makes every
// occurrence of every automaton anchor observable.
type anchorIndex struct {
	auto     *ahocorasick.Automaton
	byAnchor map[string][]int // automaton anchor -> pattern indices
	autoLive int              // patterns reachable through the automaton
	literals []anchorGroup
}

func buildIndex(entries []entry) (*anchorIndex, error) {
	groups := groupAnchors(entries)
	related := relatedAnchors(groups)

	idx := &anchorIndex{byAnchor: make(map[string][]int)}
	// Byte class compression counts classes in a byte and breaks once the
	// anchors use 255 or more distinct values.
	builder := ahocorasick.NewBuilder().SetByteClasses(false)
	added := 0
	for gi, g := range groups {
		if related[gi] {
			idx.literals = append(idx.literals, g)
			continue
		}
		builder.AddPattern(g.anchor)
		idx.byAnchor[string(g.anchor)] = g.members
		idx.autoLive += len(g.members)
		added++
	}

	if added == 0 {
		return idx, nil
	}

	auto, err := build(builder)
	if err != nil {
		return nil, &BuildError{Anchors: added, Err: err}
	}
	idx.auto = auto
	return idx, nil
}

// build runs the automaton construction and reports a panic inside the
// library as an error.
func build(b *ahocorasick.Builder) (auto *ahocorasick.Automaton, err error) {
	defer func() {
		if r := recover(); r != nil {
			auto, err = nil, fmt.Errorf("automaton construction panicked: %v", r)
		}
	}()
	return b.Build()
}

// groupAnchors collects distinct non-empty anchors in first-seen order.
func groupAnchors(entries []entry) []anchorGroup {
	var groups []anchorGroup
	pos := make(map[string]int)
	for i, e := range entries {
		if len(e.anchor) == 0 {
			continue
		}
		key := string(e.anchor)
		gi, ok := pos[key]
		if !ok {
			gi = len(groups)
			pos[key] = gi
			groups = append(groups, anchorGroup{anchor: e.anchor})
		}
		groups[gi].members = append(groups[gi].members, i)
	}
	return groups
}

// relatedAnchors marks every group whose anchor contains, or is contained
// in, another group's anchor. Containment is found by running a
// dictionary matcher over each anchor, which keeps this linear in the
// total anchor length.
func relatedAnchors(groups []anchorGroup) []bool {
	related := make([]bool, len(groups))
	if len(groups) < 2 {
		return related
	}

	dict := make([][]byte, len(groups))
	for i, g := range groups {
		dict[i] = g.anchor
	}
	m := cfahocorasick.NewMatcher(dict)

	for i, g := range groups {
		for _, j := range m.Match(g.anchor) {
			if j == i {
				continue
			}
			related[i] = true
			related[j] = true
		}
	}
	return related
}
