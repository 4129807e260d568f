package enum

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// blobEntry holds a deduplicated blob hash and its first-seen path.
type blobEntry struct {
	hash [20]byte
	path string
}

// gitBinaryAvailable returns true if the git binary is on PATH.
func gitBinaryAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// enumerateAllHistoryNative lists every object reachable from any ref with
// git rev-list, then streams their contents through git cat-file.
func (e *GitEnumerator) enumerateAllHistoryNative(ctx context.Context, callback Callback) error {
	blobs, err := e.collectBlobEntries(ctx)
	if err != nil {
		return err
	}
	return e.streamBlobContents(ctx, blobs, callback)
}

// collectBlobEntries runs git rev-list --all --objects and keeps the first
// path seen for each object. Subtrees are kept too; cat-file tells them
// apart from blobs.
func (e *GitEnumerator) collectBlobEntries(ctx context.Context) ([]blobEntry, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-list", "--all", "--objects")
	cmd.Dir = e.config.Root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("git rev-list: pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git rev-list: start: %w", err)
	}

	seen := make(map[[20]byte]bool)
	var blobs []blobEntry

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		entry, ok := parseRevListLine(scanner.Text())
		if !ok || seen[entry.hash] {
			continue
		}
		seen[entry.hash] = true
		blobs = append(blobs, entry)
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("git rev-list: scan: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("git rev-list: %w", err)
	}
	return blobs, nil
}

// parseRevListLine accepts "<40-hex> <path>". Commits and root trees have
// no path and are rejected.
func parseRevListLine(line string) (blobEntry, bool) {
	if len(line) < 42 || line[40] != ' ' {
		return blobEntry{}, false
	}
	var entry blobEntry
	if _, err := hex.Decode(entry.hash[:], []byte(line[:40])); err != nil {
		return blobEntry{}, false
	}
	entry.path = line[41:]
	return entry, true
}

// streamBlobContents feeds hashes to git cat-file --batch and invokes
// callback for every blob, binary or not.
func (e *GitEnumerator) streamBlobContents(ctx context.Context, blobs []blobEntry, callback Callback) error {
	if len(blobs) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, "git", "cat-file", "--batch")
	cmd.Dir = e.config.Root

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("git cat-file: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("git cat-file: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("git cat-file: start: %w", err)
	}

	// abort stops the child; cancellation wins over the triggering error.
	abort := func(err error) error {
		stdin.Close()
		_ = cmd.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	reader := bufio.NewReaderSize(stdout, 256*1024)

	// One request in flight at a time keeps both pipes drained.
	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		if _, err := fmt.Fprintf(stdin, "%s\n", hex.EncodeToString(blob.hash[:])); err != nil {
			return abort(fmt.Errorf("git cat-file: write: %w", err))
		}

		objType, size, err := readBatchHeader(reader)
		if err != nil {
			return abort(err)
		}
		if objType == "" {
			continue
		}

		if objType != "blob" || (e.config.MaxFileSize > 0 && size > e.config.MaxFileSize) {
			if _, err := io.CopyN(io.Discard, reader, size+1); err != nil {
				return abort(fmt.Errorf("git cat-file: discard %s: %w", objType, err))
			}
			continue
		}

		content := make([]byte, size+1)
		if _, err := io.ReadFull(reader, content); err != nil {
			return abort(fmt.Errorf("git cat-file: read content: %w", err))
		}
		content = content[:size] // trailing newline

		// The object hash is the BlobID: both are SHA-1("blob {len}\0{content}").
		prov := types.GitProvenance{
			RepoPath: e.config.Root,
			BlobPath: blob.path,
		}
		err = callback(content, types.BlobID(blob.hash), prov)
		if err == nil && len(e.config.Extract) > 0 {
			err = yieldExtracted(blob.path, content, e.config, callback)
		}
		if err != nil {
			stdin.Close()
			_ = cmd.Wait()
			return err
		}
	}

	stdin.Close()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("git cat-file: %w", err)
	}
	return nil
}

// readBatchHeader parses "<hash> <type> <size>". Missing objects yield an
// empty type.
func readBatchHeader(r *bufio.Reader) (string, int64, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", 0, fmt.Errorf("git cat-file: read header: %w", err)
	}
	parts := strings.SplitN(strings.TrimSuffix(line, "\n"), " ", 3)
	if len(parts) < 3 || parts[1] == "missing" {
		return "", 0, nil
	}
	size, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("git cat-file: parse size %q: %w", parts[2], err)
	}
	return parts[1], size, nil
}
