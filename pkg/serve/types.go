package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "find" | "scan" | "scan_batch" | "signatures" | "close"
	Payload json.RawMessage `json:"payload"`
}

// FindPayload is the payload for "find" requests. Haystack is base64.
type FindPayload struct {
	Haystack []byte   `json:"haystack"`
	Patterns []string `json:"patterns"`
}

// ScanPayload is the payload for "scan" requests. Content is base64.
type ScanPayload struct {
	Content []byte `json:"content"`
	Source  string `json:"source"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "find" | "scan" | "scan_batch" | "signatures" | "error"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version    string `json:"version"`
	Signatures int    `json:"signatures"`
}

// SignatureInfo describes one active signature in "signatures" responses.
type SignatureInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}
