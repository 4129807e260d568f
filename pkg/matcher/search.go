package matcher

import (
	"fmt"
	"log/slog"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/prefilter"
	"github.com/praetorian-inc/sigscan/pkg/search"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// SearchMatcher runs the prefilter and then one batched search over every
// signature. It is safe for concurrent use.
type SearchMatcher struct {
	sigs         []*types.Signature
	searcher     *search.Searcher
	prefilter    *prefilter.Prefilter
	contextBytes int
	maxMatches   int
	logger       *slog.Logger
	stats        *stats
}

// NewSearch compiles cfg.Signatures.
func NewSearch(cfg Config) (*SearchMatcher, error) {
	if len(cfg.Signatures) == 0 {
		return nil, fmt.Errorf("no signatures provided")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	patterns := make([]pattern.Pattern, len(cfg.Signatures))
	for i, s := range cfg.Signatures {
		patterns[i] = s.Pattern
	}

	searcher, err := search.Compile(patterns)
	if err != nil {
		return nil, fmt.Errorf("compiling %d signatures: %w", len(patterns), err)
	}

	m := &SearchMatcher{
		sigs:         cfg.Signatures,
		searcher:     searcher,
		prefilter:    prefilter.New(cfg.Signatures),
		contextBytes: cfg.ContextBytes,
		maxMatches:   cfg.MaxMatchesPerBlob,
		logger:       logger,
		stats:        newStats(),
	}
	logger.Debug("matcher compiled", "signatures", len(cfg.Signatures), "anchors", m.prefilter.Anchors())
	return m, nil
}

// Match scans content, computing its BlobID.
func (m *SearchMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content and returns at most one match per
// signature: its first occurrence. Matches come back in signature order.
func (m *SearchMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	candidates := m.prefilter.Filter(content)

	m.stats.mu.Lock()
	m.stats.summary.Blobs++
	m.stats.summary.Bytes += int64(len(content))
	if len(candidates) == 0 {
		m.stats.summary.Prefiltered++
	}
	for _, i := range candidates {
		m.stats.sig(m.sigs[i].ID).Candidates++
	}
	m.stats.mu.Unlock()

	if len(candidates) == 0 {
		return nil, nil
	}

	offsets := m.searcher.Find(content)

	var matches []*types.Match
	for i, off := range offsets {
		if off == search.NotFound {
			continue
		}
		matches = append(matches, m.newMatch(m.sigs[i], content, blobID, off))
		if m.maxMatches > 0 && len(matches) >= m.maxMatches {
			break
		}
	}

	m.stats.mu.Lock()
	m.stats.summary.Matches += len(matches)
	for _, match := range matches {
		m.stats.sig(match.SignatureID).Matches++
	}
	m.stats.mu.Unlock()

	return matches, nil
}

func (m *SearchMatcher) newMatch(sig *types.Signature, content []byte, blobID types.BlobID, off int) *types.Match {
	start, end := off, off+sig.Pattern.Len()
	before, after := ExtractContext(content, start, end, m.contextBytes)

	match := &types.Match{
		BlobID:        blobID,
		SignatureID:   sig.ID,
		SignatureName: sig.Name,
		Location: types.Location{
			Offset: types.OffsetSpan{Start: int64(start), End: int64(end)},
		},
		Snippet: types.Snippet{
			Before:   before,
			Matching: append([]byte{}, content[start:end]...),
			After:    after,
		},
	}
	sid := sig.StructuralID
	if sid == "" {
		sid = sig.ComputeStructuralID()
	}
	match.StructuralID = match.ComputeStructuralID(sid)
	match.FindingID = types.ComputeFindingID(sid, match.Snippet.Matching)
	return match
}

// Signatures returns the signatures the matcher was compiled from.
func (m *SearchMatcher) Signatures() []*types.Signature {
	return m.sigs
}

// Stats returns the summary and per-signature counters so far.
func (m *SearchMatcher) Stats() (Summary, map[string]SignatureStat) {
	return m.stats.snapshot()
}

// Close releases nothing; the compiled searcher is garbage collected.
func (m *SearchMatcher) Close() error {
	return nil
}
