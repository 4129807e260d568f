// Package scanner bundles a matcher, an in-memory store and a searcher
// cache for embedded use, such as the NDJSON server.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/praetorian-inc/sigscan/pkg/logging"
	"github.com/praetorian-inc/sigscan/pkg/matcher"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	// cachedBuiltinSignatures holds builtin signatures loaded once per process
	cachedBuiltinSignatures []*types.Signature
	cachedSignaturesErr     error
	cacheOnce               sync.Once
)

// loadBuiltinSignaturesCached loads builtin signatures once and caches them
func loadBuiltinSignaturesCached() ([]*types.Signature, error) {
	cacheOnce.Do(func() {
		cachedBuiltinSignatures, cachedSignaturesErr = signature.NewLoader().LoadBuiltinSignatures()
	})
	return cachedBuiltinSignatures, cachedSignaturesErr
}

// GetBuiltinSignatures returns the built-in signatures (cached)
func GetBuiltinSignatures() ([]*types.Signature, error) {
	return loadBuiltinSignaturesCached()
}

// Options configure a Core.
type Options struct {
	// Signatures to scan for. Nil loads the built-in signatures.
	Signatures []*types.Signature

	// ContextBytes kept around each match. Zero uses
	// matcher.DefaultContextBytes, negative keeps none.
	ContextBytes int

	// CacheSize bounds the compiled searchers kept for Find.
	CacheSize int

	// Meter receives scan metrics. Nil uses the global meter provider.
	Meter metric.Meter

	Logger *slog.Logger
}

// Core wraps the matcher and store for scanning operations
type Core struct {
	mu           sync.RWMutex
	matcher      *matcher.SearchMatcher
	store        store.Store
	searchers    *SearcherCache
	metrics      *metrics
	contextBytes int
	logger       *slog.Logger
}

// NewCore compiles the signatures and creates an in-memory store.
func NewCore(opts Options) (*Core, error) {
	logger := logging.OrDefault(opts.Logger)

	sigs := opts.Signatures
	if sigs == nil {
		var err error
		sigs, err = loadBuiltinSignaturesCached()
		if err != nil {
			return nil, fmt.Errorf("loading builtin signatures: %w", err)
		}
	}

	contextBytes := opts.ContextBytes
	switch {
	case contextBytes == 0:
		contextBytes = matcher.DefaultContextBytes
	case contextBytes < 0:
		contextBytes = 0
	}

	searchers, err := NewSearcherCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	c := &Core{
		searchers:    searchers,
		metrics:      newMetrics(opts.Meter),
		contextBytes: contextBytes,
		logger:       logger,
	}

	m, err := c.compile(context.Background(), sigs)
	if err != nil {
		return nil, err
	}
	c.matcher = m

	s, err := store.New(store.Config{Path: ":memory:"})
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	c.store = s

	logger.Debug("scanner ready", "signatures", len(sigs), "context_bytes", contextBytes)
	return c, nil
}

func (c *Core) compile(ctx context.Context, sigs []*types.Signature) (*matcher.SearchMatcher, error) {
	start := time.Now()
	m, err := matcher.NewSearch(matcher.Config{
		Signatures:   sigs,
		ContextBytes: c.contextBytes,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, err
	}
	c.metrics.compiled(ctx, compileSignatures, time.Since(start))
	return m, nil
}

// Reload swaps in a new signature set. Scans in flight finish against the
// old set; on error the old set stays active.
func (c *Core) Reload(ctx context.Context, sigs []*types.Signature) error {
	m, err := c.compile(ctx, sigs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.matcher
	c.matcher = m
	c.mu.Unlock()

	old.Close()
	c.logger.Info("signatures reloaded", "signatures", len(sigs))
	return nil
}

// Signatures returns the active signatures.
func (c *Core) Signatures() []*types.Signature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matcher.Signatures()
}

// Store returns the store every scan is recorded in.
func (c *Core) Store() store.Store {
	return c.store
}

// Scan scans a single content item and records the result.
func (c *Core) Scan(ctx context.Context, content []byte, source string) (*ScanResult, error) {
	c.mu.RLock()
	m := c.matcher
	c.mu.RUnlock()

	blobID := types.ComputeBlobID(content)
	matches, err := m.MatchWithBlobID(content, blobID)
	if err != nil {
		return nil, err
	}
	c.metrics.scanned(ctx, int64(len(content)), len(matches))

	prov := types.ExtendedProvenance{Payload: map[string]interface{}{"source": source}}
	if err := store.Record(c.store, blobID, int64(len(content)), prov, matches); err != nil {
		return nil, fmt.Errorf("recording %s: %w", source, err)
	}

	return &ScanResult{
		Source:  source,
		BlobID:  blobID,
		Matches: matches,
	}, nil
}

// ScanBatch scans multiple content items. Items that fail are logged and
// left out of the result.
func (c *Core) ScanBatch(ctx context.Context, items []ContentItem) (*BatchScanResult, error) {
	results := make([]ScanResult, 0, len(items))
	total := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := c.Scan(ctx, item.Content, item.Source)
		if err != nil {
			c.logger.Warn("skipping item", "source", item.Source, "error", err)
			continue
		}
		results = append(results, *r)
		total += len(r.Matches)
	}

	return &BatchScanResult{
		Results: results,
		Total:   total,
	}, nil
}

// Find locates the first occurrence of each pattern in haystack. The
// compiled pattern set is cached, so repeating a batch only scans.
func (c *Core) Find(ctx context.Context, haystack []byte, patterns []string) (*FindResult, error) {
	parsed, err := pattern.ParseAll(patterns)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s, hit, err := c.searchers.Get(parsed)
	if err != nil {
		return nil, err
	}
	if hit {
		c.metrics.cacheHits.Add(ctx, 1)
	} else {
		c.metrics.compiled(ctx, compileFind, time.Since(start))
	}

	offsets := s.Find(haystack)
	c.metrics.scanned(ctx, int64(len(haystack)), found(offsets))
	return &FindResult{Offsets: offsets, Cached: hit}, nil
}

func found(offsets []int) int {
	n := 0
	for _, o := range offsets {
		if o >= 0 {
			n++
		}
	}
	return n
}

// Close releases scanner resources
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
	c.searchers.Purge()
}
