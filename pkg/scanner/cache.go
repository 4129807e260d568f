package scanner

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/search"
)

// DefaultCacheSize is the number of compiled pattern sets kept by a Core.
const DefaultCacheSize = 64

// SearcherCache keeps compiled searchers keyed by pattern-set fingerprint,
// so a client repeating the same batch skips automaton construction.
type SearcherCache struct {
	cache *lru.Cache[string, *search.Searcher]
}

// NewSearcherCache creates a cache holding up to size searchers.
func NewSearcherCache(size int) (*SearcherCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *search.Searcher](size)
	if err != nil {
		return nil, err
	}
	return &SearcherCache{cache: c}, nil
}

// Fingerprint identifies an ordered pattern set by its canonical text.
// Spellings that normalise to the same pattern ("?" and "??", case) share
// a fingerprint; order matters because results are positional.
func Fingerprint(patterns []pattern.Pattern) string {
	h := sha256.New()
	for _, p := range patterns {
		h.Write([]byte(p.String()))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the compiled searcher for patterns, compiling and caching it
// on a miss. hit reports whether compilation was skipped.
func (c *SearcherCache) Get(patterns []pattern.Pattern) (s *search.Searcher, hit bool, err error) {
	key := Fingerprint(patterns)
	if s, ok := c.cache.Get(key); ok {
		return s, true, nil
	}

	s, err = search.Compile(patterns)
	if err != nil {
		return nil, false, err
	}
	c.cache.Add(key, s)
	return s, false, nil
}

// Len returns the number of cached searchers.
func (c *SearcherCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached searcher.
func (c *SearcherCache) Purge() {
	c.cache.Purge()
}
