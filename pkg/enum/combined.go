package enum

import (
	"context"
	"sync"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// CombinedEnumerator runs several enumerators in order and yields each
// distinct blob once. A directory that is also a git repository is scanned
// this way: the working tree first, then history, without rescanning
// unchanged files.
type CombinedEnumerator struct {
	enumerators []Enumerator

	// OnDuplicate, when set, receives the provenance of every blob that was
	// already yielded, so callers can record the extra location.
	OnDuplicate func(blobID types.BlobID, prov types.Provenance) error
}

// NewCombinedEnumerator wraps enumerators, which run in order.
func NewCombinedEnumerator(enumerators ...Enumerator) *CombinedEnumerator {
	return &CombinedEnumerator{enumerators: enumerators}
}

// Enumerate runs each child in sequence. Children may call back
// concurrently, so the seen set is locked.
func (c *CombinedEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	var mu sync.Mutex
	seen := make(map[types.BlobID]bool)

	dedup := func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		mu.Lock()
		dup := seen[blobID]
		seen[blobID] = true
		mu.Unlock()

		if !dup {
			return callback(content, blobID, prov)
		}
		if c.OnDuplicate != nil {
			return c.OnDuplicate(blobID, prov)
		}
		return nil
	}

	for _, e := range c.enumerators {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Enumerate(ctx, dedup); err != nil {
			return err
		}
	}
	return nil
}
