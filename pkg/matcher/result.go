package matcher

import "sync"

// SignatureStat counts the work attributed to one signature.
type SignatureStat struct {
	SignatureID string
	Candidates  int // blobs where the prefilter kept the signature
	Matches     int // blobs where the signature matched
}

// Summary aggregates a matcher's work since creation.
type Summary struct {
	Blobs       int   // blobs scanned
	Bytes       int64 // bytes scanned
	Prefiltered int   // blobs skipped because no anchor occurred
	Matches     int   // matches returned
}

// stats is the mutex-guarded accumulator behind Stats.
type stats struct {
	mu      sync.Mutex
	summary Summary
	perSig  map[string]*SignatureStat
}

func newStats() *stats {
	return &stats{perSig: make(map[string]*SignatureStat)}
}

func (s *stats) sig(id string) *SignatureStat {
	st, ok := s.perSig[id]
	if !ok {
		st = &SignatureStat{SignatureID: id}
		s.perSig[id] = st
	}
	return st
}

func (s *stats) snapshot() (Summary, map[string]SignatureStat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	per := make(map[string]SignatureStat, len(s.perSig))
	for id, st := range s.perSig {
		per[id] = *st
	}
	return s.summary, per
}
