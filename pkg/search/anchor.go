package search

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// parallelThreshold is the pattern count at which anchor selection is
// spread across workers.
const parallelThreshold = 1024

// prepareChunk is the number of patterns one worker prepares per task.
const prepareChunk = 256

// entry is the scan-time record for one input pattern.
type entry struct {
	tmpl   pattern.Pattern // pattern with leading wildcards removed
	lead   int             // number of leading wildcards removed
	anchor []byte          // longest run of known bytes in tmpl
	offset int             // position of anchor within tmpl
}

// normalize strips the leading run of wildcard cells and reports how many
// were removed. Interior and trailing wildcards are kept.
func normalize(p pattern.Pattern) (pattern.Pattern, int) {
	lead := 0
	for lead < p.Len() && p.IsWildcard(lead) {
		lead++
	}
	return p.Slice(lead, p.Len()), lead
}

// selectAnchor finds the longest run of known cells in p. Only a strictly
// longer run replaces the current best, so the leftmost of several
// equal-length runs wins. A pattern without known cells yields an empty
// anchor at offset 0.
func selectAnchor(p pattern.Pattern) (anchor []byte, offset int) {
	bestStart, bestLen := 0, 0
	curStart, curLen := 0, 0

	for i := 0; i < p.Len(); i++ {
		if p.IsWildcard(i) {
			curLen = 0
			continue
		}
		if curLen == 0 {
			curStart = i
		}
		curLen++
		if curLen > bestLen {
			bestStart, bestLen = curStart, curLen
		}
	}

	anchor = make([]byte, bestLen)
	for i := range anchor {
		anchor[i] = p.Byte(bestStart + i)
	}
	return anchor, bestStart
}

// Anchor returns the literal a Searcher scans for to find p: the longest
// run of known bytes once leading wildcards are stripped. It is empty when
// p has no known bytes.
func Anchor(p pattern.Pattern) []byte {
	anchor, _ := selectAnchor(p)
	return anchor
}

func prepareOne(p pattern.Pattern) entry {
	tmpl, lead := normalize(p)
	anchor, offset := selectAnchor(tmpl)
	return entry{tmpl: tmpl, lead: lead, anchor: anchor, offset: offset}
}

// prepare builds one entry per pattern, index-aligned with patterns.
func prepare(patterns []pattern.Pattern) []entry {
	entries := make([]entry, len(patterns))
	if len(patterns) < parallelThreshold {
		for i, p := range patterns {
			entries[i] = prepareOne(p)
		}
		return entries
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < len(patterns); start += prepareChunk {
		end := min(start+prepareChunk, len(patterns))
		g.Go(func() error {
			for i := start; i < end; i++ {
				entries[i] = prepareOne(patterns[i])
			}
			return nil
		})
	}
	// prepareOne cannot fail; Wait only joins the workers.
	g.Wait()

	return entries
}
