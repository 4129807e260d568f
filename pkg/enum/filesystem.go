package enum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// FilesystemEnumerator enumerates files below a directory, or a single file.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// fileEntry holds metadata collected during the walk phase.
type fileEntry struct {
	path string
	size int64
}

// Enumerate walks the filesystem and yields file blobs.
// Phase 1: Walk directory tree and collect eligible file paths (fast, sequential).
// Phase 2: Read files and invoke callback in parallel.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	files, err := e.collect(ctx)
	if err != nil {
		return err
	}

	numReaders := e.config.Workers
	if numReaders < 1 {
		numReaders = runtime.NumCPU()
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	pathsCh := make(chan fileEntry, numReaders*2)

	g.Go(func() error {
		defer close(pathsCh)
		for _, f := range files {
			select {
			case pathsCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < numReaders; i++ {
		g.Go(func() error {
			for f := range pathsCh {
				if err := e.processFile(ctx, f, callback); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// If the caller's context was cancelled but all goroutines finished
	// before noticing, propagate the cancellation.
	return origCtx.Err()
}

// collect walks Root and returns the files that pass the hidden, size,
// symlink and .gitignore policies.
func (e *FilesystemEnumerator) collect(ctx context.Context) ([]fileEntry, error) {
	root := e.config.Root
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if e.config.MaxFileSize > 0 && info.Size() > e.config.MaxFileSize {
			return nil, nil
		}
		return []fileEntry{{path: root, size: info.Size()}}, nil
	}

	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, err = gitignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			e.config.logger().Warn("ignoring unreadable .gitignore", "path", gitignorePath, "error", err)
		}
	}

	var files []fileEntry
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && !e.config.IncludeHidden && isHidden(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !e.config.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || target.IsDir() {
				return nil
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if !e.config.IncludeHidden && isHidden(info.Name()) {
			return nil
		}

		if e.config.MaxFileSize > 0 && info.Size() > e.config.MaxFileSize {
			return nil
		}

		if ignore != nil {
			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				return nil
			}
		}

		files = append(files, fileEntry{path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// processFile reads a single file, yields it, and yields the members of
// any container format enabled in Extract.
func (e *FilesystemEnumerator) processFile(ctx context.Context, f fileEntry, callback Callback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", f.path, err)
	}

	prov := types.FileProvenance{FilePath: f.path, Size: int64(len(content))}
	if err := callback(content, types.ComputeBlobID(content), prov); err != nil {
		return err
	}

	if len(e.config.Extract) == 0 {
		return nil
	}
	return yieldExtracted(f.path, content, e.config, callback)
}

// yieldExtracted expands content when its format is enabled and passes
// each member to callback with archive provenance.
func yieldExtracted(name string, content []byte, cfg Config, callback Callback) error {
	format := DetectFormat(name, content)
	if format == "" || !shouldExtract(cfg.Extract, format) {
		return nil
	}

	members, err := Extract(name, content, format, cfg.Extract, cfg.ExtractLimits)
	switch {
	case errors.Is(err, ErrLimit):
		cfg.logger().Warn("archive truncated at extraction limit", "path", name, "members", len(members))
	case err != nil:
		cfg.logger().Debug("archive not extracted", "path", name, "format", format, "error", err)
	}

	for _, m := range members {
		prov := types.ArchiveProvenance{
			ArchivePath: name,
			MemberPath:  m.Name,
			Format:      m.Format,
		}
		if err := callback(m.Content, types.ComputeBlobID(m.Content), prov); err != nil {
			return err
		}
	}
	return nil
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
