// Package matcher turns signature hits into located, deduplicated matches.
package matcher

import (
	"log/slog"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Matcher scans content for signature matches.
type Matcher interface {
	// Match scans content against all loaded signatures.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content whose BlobID is already known.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases resources.
	Close() error
}

// DefaultContextBytes is the snippet context kept on each side of a match.
const DefaultContextBytes = 16

// Config for matcher initialization.
type Config struct {
	// Signatures to compile into the matcher
	Signatures []*types.Signature

	// ContextBytes kept before and after each match (0 = none)
	ContextBytes int

	// MaxMatchesPerBlob limits matches returned per blob (0 = unlimited)
	MaxMatchesPerBlob int

	Logger *slog.Logger
}

// New creates the default Matcher.
func New(cfg Config) (Matcher, error) {
	return NewSearch(cfg)
}
