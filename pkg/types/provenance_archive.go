package types

import "fmt"

// ArchiveProvenance tracks a member extracted from an archive or a
// decompressed stream.
type ArchiveProvenance struct {
	ArchivePath string // path to the archive file
	MemberPath  string // path within the archive, or the stripped name for single streams
	Format      string // "zip", "tar", "7z", "gzip", ...
}

// Kind returns "archive".
func (a ArchiveProvenance) Kind() string {
	return "archive"
}

// Path returns "archive:member".
func (a ArchiveProvenance) Path() string {
	return fmt.Sprintf("%s:%s", a.ArchivePath, a.MemberPath)
}
