// Package enum discovers blobs to scan: files on disk, members of
// archives, git objects and cloud blob containers.
package enum

import (
	"context"
	"log/slog"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Callback receives one blob. Returning an error stops enumeration.
type Callback func(content []byte, blobID types.BlobID, prov types.Provenance) error

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source.
	// The callback receives blob content, its ID, and provenance information.
	// Implementations that read in parallel may call callback concurrently.
	Enumerate(ctx context.Context, callback Callback) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Extract lists container formats to expand ("zip", "tar", "gzip", ...,
	// or "all"). Expanded members are yielded in addition to the container.
	Extract []string

	// ExtractLimits bounds archive expansion.
	ExtractLimits ExtractLimits

	// Workers is the number of parallel readers (0 = NumCPU).
	Workers int

	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
