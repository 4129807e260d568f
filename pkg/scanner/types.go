package scanner

import "github.com/praetorian-inc/sigscan/pkg/types"

// ContentItem is one haystack to scan. Content is base64 in JSON.
type ContentItem struct {
	Source   string            `json:"source"`  // e.g., "firmware.bin", "pid:4121:text"
	Content  []byte            `json:"content"` // raw bytes to scan
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// FindResult holds one offset per requested pattern, -1 when absent.
type FindResult struct {
	Offsets []int `json:"offsets"`
	Cached  bool  `json:"cached"` // compiled searcher came from the cache
}
