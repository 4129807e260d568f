// Package sigscan finds wildcard byte patterns ("48 8B ?? ?? 89") in
// binary data.
//
// # Finding patterns
//
// Find reports the first occurrence of each pattern in one automaton pass:
//
//	offsets, err := sigscan.FindStrings(image, []string{"48 8B ?? ?? 89", "E8 ? ? ? ? 90"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i, off := range offsets {
//	    if off != sigscan.NotFound {
//	        fmt.Printf("pattern %d at 0x%X\n", i, off)
//	    }
//	}
//
// # Scanning with signatures
//
// A Scanner matches named signatures and returns located matches with
// context bytes:
//
//	scanner, err := sigscan.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.ScanFile("/bin/ls")
//	for _, m := range matches {
//	    fmt.Printf("%s at %s\n", m.SignatureName, m.Location.Offset)
//	}
package sigscan

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/praetorian-inc/sigscan/pkg/matcher"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/search"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Re-export commonly used types for convenience.
type (
	// Pattern is a byte pattern with wildcard positions.
	Pattern = pattern.Pattern

	// Searcher is a compiled pattern batch, reusable across haystacks.
	Searcher = search.Searcher

	// Signature is a named pattern with metadata.
	Signature = types.Signature

	// Match is one signature occurrence.
	Match = types.Match

	// Location describes where a match was found within content.
	Location = types.Location

	// Snippet contains the matched bytes with surrounding context.
	Snippet = types.Snippet
)

// NotFound marks a pattern without an occurrence.
const NotFound = search.NotFound

// ParsePattern parses "48 ?? 2E" style text.
func ParsePattern(s string) (Pattern, error) {
	return pattern.Parse(s)
}

// Compile prepares patterns for repeated searching.
func Compile(patterns []Pattern) (*Searcher, error) {
	return search.Compile(patterns)
}

// Find returns the first offset of each pattern in haystack, or NotFound.
func Find(haystack []byte, patterns []Pattern) ([]int, error) {
	return search.Find(haystack, patterns)
}

// FindStrings parses patterns and searches haystack.
func FindStrings(haystack []byte, patterns []string) ([]int, error) {
	return search.FindStrings(haystack, patterns)
}

// Scanner matches signatures against content.
type Scanner struct {
	matcher *matcher.SearchMatcher
	config  *scannerConfig
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	signatures   []*types.Signature
	contextBytes int
	maxMatches   int
	logger       *slog.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithSignatures uses custom signatures instead of the builtin set.
func WithSignatures(sigs []*Signature) Option {
	return func(c *scannerConfig) {
		c.signatures = sigs
	}
}

// WithContextBytes sets the bytes of context kept on each side of a match.
// Default is matcher.DefaultContextBytes.
func WithContextBytes(n int) Option {
	return func(c *scannerConfig) {
		c.contextBytes = n
	}
}

// WithMaxMatches caps the matches returned per scan (0 = unlimited).
func WithMaxMatches(n int) Option {
	return func(c *scannerConfig) {
		c.maxMatches = n
	}
}

// WithLogger sets the logger for compile diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = logger
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses all builtin signatures
//   - Keeps 16 bytes of context around matches
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		contextBytes: matcher.DefaultContextBytes,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.signatures == nil {
		sigs, err := LoadBuiltinSignatures()
		if err != nil {
			return nil, fmt.Errorf("loading builtin signatures: %w", err)
		}
		config.signatures = sigs
	}

	m, err := matcher.NewSearch(matcher.Config{
		Signatures:        config.signatures,
		ContextBytes:      config.contextBytes,
		MaxMatchesPerBlob: config.maxMatches,
		Logger:            config.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	return &Scanner{
		matcher: m,
		config:  config,
	}, nil
}

// ScanBytes scans raw bytes and returns the first match of each signature.
// Safe for concurrent use.
func (s *Scanner) ScanBytes(content []byte) ([]*Match, error) {
	return s.matcher.Match(content)
}

// ScanFile reads and scans a file.
func (s *Scanner) ScanFile(path string) ([]*Match, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytes(content)
}

// Close releases scanner resources.
func (s *Scanner) Close() error {
	return s.matcher.Close()
}

// SignatureCount returns the number of signatures loaded.
func (s *Scanner) SignatureCount() int {
	return len(s.config.signatures)
}

// Signatures returns a copy of the loaded signatures.
func (s *Scanner) Signatures() []*Signature {
	sigs := make([]*Signature, len(s.config.signatures))
	copy(sigs, s.config.signatures)
	return sigs
}

// LoadSignaturesFromFile loads every signature in a YAML file.
func LoadSignaturesFromFile(path string) ([]*Signature, error) {
	return signature.NewLoader().LoadFile(path)
}

// LoadBuiltinSignatures returns all builtin signatures.
func LoadBuiltinSignatures() ([]*Signature, error) {
	return signature.NewLoader().LoadBuiltinSignatures()
}
