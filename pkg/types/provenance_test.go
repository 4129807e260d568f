package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvenance_KindAndPath(t *testing.T) {
	tests := []struct {
		name string
		prov Provenance
		kind string
		path string
	}{
		{name: "file", prov: FileProvenance{FilePath: "/bin/ls", Size: 142144}, kind: "file", path: "/bin/ls"},
		{name: "git", prov: GitProvenance{RepoPath: "/src/repo", BlobPath: "build/tool.exe"}, kind: "git", path: "build/tool.exe"},
		{name: "archive", prov: ArchiveProvenance{ArchivePath: "dist.zip", MemberPath: "bin/app", Format: "zip"}, kind: "archive", path: "dist.zip:bin/app"},
		{name: "blob", prov: BlobProvenance{Account: "acct", Container: "firmware", Name: "v1/image.bin"}, kind: "blob", path: "firmware/v1/image.bin"},
		{name: "extended", prov: ExtendedProvenance{Payload: map[string]interface{}{"source": "stdin"}}, kind: "extended", path: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.prov.Kind())
			assert.Equal(t, tt.path, tt.prov.Path())
		})
	}
}

func TestGitProvenance_WithCommit(t *testing.T) {
	commitTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	prov := GitProvenance{
		RepoPath: "/path/to/repo",
		Commit: &CommitMetadata{
			CommitID:        "abc123def456",
			AuthorName:      "Jane Doe",
			AuthorEmail:     "jane@example.com",
			AuthorTimestamp: commitTime,
			Message:         "Add release binary",
		},
		BlobPath: "release/app",
	}

	require.NotNil(t, prov.Commit)
	assert.Equal(t, "abc123def456", prov.Commit.CommitID)
	assert.Equal(t, commitTime, prov.Commit.AuthorTimestamp)
}
