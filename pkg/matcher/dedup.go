package matcher

import "github.com/praetorian-inc/sigscan/pkg/types"

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation treats matches as equal when signature, blob and
	// span agree. The same bytes at two offsets stay separate.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent treats matches as equal when signature and matched
	// bytes agree, wherever they occur.
	DedupeByContent
)

// ParseDedupeMode maps "location" and "content" to a mode.
func ParseDedupeMode(s string) (DedupeMode, bool) {
	switch s {
	case "location", "":
		return DedupeByLocation, true
	case "content":
		return DedupeByContent, true
	default:
		return DedupeByLocation, false
	}
}

// Deduplicator remembers which matches were already seen. Not safe for
// concurrent use.
type Deduplicator struct {
	seen map[string]bool
	mode DedupeMode
}

// NewDeduplicator creates a location-based deduplicator.
func NewDeduplicator() *Deduplicator {
	return NewDeduplicatorWithMode(DedupeByLocation)
}

// NewDeduplicatorWithMode creates a deduplicator using mode.
func NewDeduplicatorWithMode(mode DedupeMode) *Deduplicator {
	return &Deduplicator{seen: make(map[string]bool), mode: mode}
}

// IsDuplicate reports whether an equal match was added before.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	return d.seen[d.key(m)]
}

// Add marks m as seen.
func (d *Deduplicator) Add(m *types.Match) {
	d.seen[d.key(m)] = true
}

// Filter returns the matches not seen before, marking them as seen.
func (d *Deduplicator) Filter(matches []*types.Match) []*types.Match {
	out := matches[:0:0]
	for _, m := range matches {
		if d.IsDuplicate(m) {
			continue
		}
		d.Add(m)
		out = append(out, m)
	}
	return out
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

func (d *Deduplicator) key(m *types.Match) string {
	if d.mode == DedupeByContent {
		return m.FindingID
	}
	return m.StructuralID
}
