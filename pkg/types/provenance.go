package types

import "time"

// Provenance tracks where a blob was discovered.
type Provenance interface {
	Kind() string
	Path() string // displayable location, empty when there is none
}

// FileProvenance for filesystem files.
type FileProvenance struct {
	FilePath string
	Size     int64
}

func (f FileProvenance) Kind() string { return "file" }
func (f FileProvenance) Path() string { return f.FilePath }

// GitProvenance for blobs read from a git object store.
type GitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata // nil when history was not walked
	BlobPath string          // path within the tree at Commit
}

func (g GitProvenance) Kind() string { return "git" }
func (g GitProvenance) Path() string { return g.BlobPath }

// CommitMetadata holds the commit a blob was first seen in.
type CommitMetadata struct {
	CommitID           string
	AuthorName         string
	AuthorEmail        string
	AuthorTimestamp    time.Time
	CommitterName      string
	CommitterEmail     string
	CommitterTimestamp time.Time
	Message            string
}

// BlobProvenance for objects read from a cloud blob container.
type BlobProvenance struct {
	Account   string
	Container string
	Name      string
}

func (b BlobProvenance) Kind() string { return "blob" }
func (b BlobProvenance) Path() string { return b.Container + "/" + b.Name }

// ExtendedProvenance for sources without a path, such as stdin or serve
// requests.
type ExtendedProvenance struct {
	Payload map[string]interface{}
}

func (e ExtendedProvenance) Kind() string { return "extended" }
func (e ExtendedProvenance) Path() string { return "" }
