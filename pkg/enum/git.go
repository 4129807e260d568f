package enum

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// GitEnumerator enumerates blobs from a git repository.
type GitEnumerator struct {
	config Config

	// Revision selects the tree to enumerate (defaults to HEAD).
	Revision string

	// WalkAll enumerates every blob reachable from any ref instead of a
	// single tree. The git binary is used when it is on PATH.
	WalkAll bool

	native bool
}

// NewGitEnumerator creates a new git enumerator.
func NewGitEnumerator(config Config) *GitEnumerator {
	return &GitEnumerator{
		config:   config,
		Revision: "HEAD",
		native:   true,
	}
}

// Enumerate yields each unique blob once. Blob IDs are the object hashes
// git already computed.
func (e *GitEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	if e.WalkAll && e.native && gitBinaryAvailable() {
		return e.enumerateAllHistoryNative(ctx, callback)
	}

	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("failed to open git repository: %w", err)
	}

	seen := make(map[plumbing.Hash]bool)
	if e.WalkAll {
		return e.enumerateHistory(ctx, repo, seen, callback)
	}

	rev := e.Revision
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return fmt.Errorf("failed to resolve ref %s: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return fmt.Errorf("failed to get commit: %w", err)
	}
	return e.enumerateCommit(ctx, commit, seen, callback)
}

// enumerateHistory walks every commit reachable from any ref.
func (e *GitEnumerator) enumerateHistory(ctx context.Context, repo *git.Repository, seen map[plumbing.Hash]bool, callback Callback) error {
	iter, err := repo.Log(&git.LogOptions{All: true})
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	return iter.ForEach(func(c *object.Commit) error {
		return e.enumerateCommit(ctx, c, seen, callback)
	})
}

// enumerateCommit yields the blobs of commit's tree not already in seen.
func (e *GitEnumerator) enumerateCommit(ctx context.Context, commit *object.Commit, seen map[plumbing.Hash]bool, callback Callback) error {
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to get tree: %w", err)
	}

	meta := commitMetadata(commit)

	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if seen[f.Hash] {
			return nil
		}
		seen[f.Hash] = true

		if e.config.MaxFileSize > 0 && f.Size > e.config.MaxFileSize {
			return nil
		}

		rc, err := f.Reader()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}

		prov := types.GitProvenance{
			RepoPath: e.config.Root,
			Commit:   meta,
			BlobPath: f.Name,
		}
		if err := callback(content, types.BlobID(f.Hash), prov); err != nil {
			return err
		}
		if len(e.config.Extract) == 0 {
			return nil
		}
		return yieldExtracted(f.Name, content, e.config, callback)
	})
	if err != nil {
		return fmt.Errorf("failed to walk tree: %w", err)
	}
	return nil
}

func commitMetadata(c *object.Commit) *types.CommitMetadata {
	return &types.CommitMetadata{
		CommitID:           c.Hash.String(),
		AuthorName:         c.Author.Name,
		AuthorEmail:        c.Author.Email,
		AuthorTimestamp:    c.Author.When,
		CommitterName:      c.Committer.Name,
		CommitterEmail:     c.Committer.Email,
		CommitterTimestamp: c.Committer.When,
		Message:            c.Message,
	}
}
