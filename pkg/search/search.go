// Package search finds the first occurrence of each of many wildcard byte
// patterns in a haystack with a single multi-pattern automaton pass.
//
// Every pattern is reduced to an anchor, its longest run of known bytes.
// The automaton finds anchor occurrences; each occurrence is then widened
// to the full pattern window and verified against the wildcard mask.
//
//	offsets, err := search.FindStrings(image, []string{"48 8B ?? ?? 89", "E8 ? ? ? ? 90"})
//	if err != nil {
//	    return err
//	}
//	for i, off := range offsets {
//	    if off == search.NotFound {
//	        continue
//	    }
//	    fmt.Printf("pattern %d at 0x%X\n", i, off)
//	}
package search

import (
	"bytes"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// NotFound marks a pattern without an occurrence in the haystack.
const NotFound = -1

// Searcher is a compiled pattern batch. It is read-only after Compile and
// may be shared between goroutines scanning different haystacks.
type Searcher struct {
	entries []entry
	index   *anchorIndex
}

// Compile prepares patterns for searching. The only error it returns is a
// *BuildError from the underlying automaton.
func Compile(patterns []pattern.Pattern) (*Searcher, error) {
	entries := prepare(patterns)
	idx, err := buildIndex(entries)
	if err != nil {
		return nil, err
	}
	return &Searcher{entries: entries, index: idx}, nil
}

// Find compiles patterns and searches haystack once. The result holds one
// offset per pattern, in input order, or NotFound.
func Find(haystack []byte, patterns []pattern.Pattern) ([]int, error) {
	s, err := Compile(patterns)
	if err != nil {
		return nil, err
	}
	return s.Find(haystack), nil
}

// FindStrings parses patterns in text form and searches haystack.
// Syntax errors are returned as *pattern.ParseError before any search.
func FindStrings(haystack []byte, patterns []string) ([]int, error) {
	ps, err := pattern.ParseAll(patterns)
	if err != nil {
		return nil, err
	}
	return Find(haystack, ps)
}

// Len returns the number of compiled patterns.
func (s *Searcher) Len() int {
	return len(s.entries)
}

// Find returns, for each compiled pattern, the offset of its leftmost
// occurrence in haystack or NotFound. Offsets count the pattern's leading
// wildcards, so a pattern "?? 48" found with 0x48 at k reports k-1.
func (s *Searcher) Find(haystack []byte) []int {
	out := make([]int, len(s.entries))
	for i := range out {
		out[i] = NotFound
	}

	s.scanAutomaton(haystack, out)
	s.scanLiterals(haystack, out)

	return out
}

func (s *Searcher) scanAutomaton(haystack []byte, out []int) {
	idx := s.index
	if idx.auto == nil {
		return
	}

	pending := idx.autoLive
	for at := 0; at < len(haystack) && pending > 0; {
		m := idx.auto.Find(haystack, at)
		if m == nil {
			return
		}
		members := idx.byAnchor[string(haystack[m.Start:m.End])]
		pending -= s.verify(haystack, members, m.Start, out)
		// Resume one past the hit start: a failed verification must not
		// hide an overlapping occurrence that starts inside this one.
		at = m.Start + 1
	}
}

func (s *Searcher) scanLiterals(haystack []byte, out []int) {
	for _, g := range s.index.literals {
		pending := 0
		for _, i := range g.members {
			if out[i] == NotFound {
				pending++
			}
		}

		for at := 0; pending > 0 && at < len(haystack); {
			rel := bytes.Index(haystack[at:], g.anchor)
			if rel < 0 {
				break
			}
			hit := at + rel
			pending -= s.verify(haystack, g.members, hit, out)
			at = hit + 1
		}
	}
}

// verify checks every pattern sharing the anchor found at hit and records
// the ones that match. It returns how many slots it filled.
func (s *Searcher) verify(haystack []byte, members []int, hit int, out []int) int {
	filled := 0
	for _, i := range members {
		if out[i] != NotFound {
			continue
		}
		e := &s.entries[i]

		start := hit - e.offset
		end := start + e.tmpl.Len()
		if start < 0 || end > len(haystack) {
			continue
		}
		// The stripped leading wildcards still need room in the buffer.
		if start < e.lead {
			continue
		}
		if !e.tmpl.Matches(haystack[start:end]) {
			continue
		}

		out[i] = start - e.lead
		filled++
	}
	return filled
}

// Plan describes how one pattern is searched.
type Plan struct {
	Stripped     pattern.Pattern // pattern without leading wildcards
	Lead         int             // leading wildcards removed
	Anchor       []byte          // literal searched for
	AnchorOffset int             // anchor position within Stripped
	Literal      bool            // anchor scanned directly instead of by the automaton
}

// Explain returns the search plan for pattern i.
func (s *Searcher) Explain(i int) Plan {
	e := s.entries[i]
	p := Plan{
		Stripped:     e.tmpl,
		Lead:         e.lead,
		Anchor:       append([]byte{}, e.anchor...),
		AnchorOffset: e.offset,
	}
	for _, g := range s.index.literals {
		if bytes.Equal(g.anchor, e.anchor) {
			p.Literal = true
			break
		}
	}
	return p
}
