package enum

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Container formats understood by Extract.
const (
	FormatZip    = "zip"
	FormatTar    = "tar"
	Format7z     = "7z"
	FormatGzip   = "gzip"
	FormatZstd   = "zstd"
	FormatXz     = "xz"
	FormatLz4    = "lz4"
	FormatBrotli = "brotli"
	FormatBzip2  = "bzip2"
)

// Formats lists every supported container format.
var Formats = []string{FormatZip, FormatTar, Format7z, FormatGzip, FormatZstd, FormatXz, FormatLz4, FormatBrotli, FormatBzip2}

// ErrLimit is returned, alongside the members read so far, when expansion
// stops at a member count or total size limit.
var ErrLimit = errors.New("extraction limit exceeded")

// ExtractLimits bounds archive expansion. Zero fields are unlimited.
type ExtractLimits struct {
	MaxMembers    int   // members yielded per top-level file
	MaxMemberSize int64 // larger members are skipped
	MaxTotalSize  int64 // decompressed bytes per top-level file
	MaxDepth      int   // nesting levels expanded, 1 = top level only
}

// DefaultExtractLimits returns the limits used by the CLI.
func DefaultExtractLimits() ExtractLimits {
	return ExtractLimits{
		MaxMembers:    10000,
		MaxMemberSize: 64 << 20,
		MaxTotalSize:  512 << 20,
		MaxDepth:      3,
	}
}

// ExtractedContent is one member of an archive or one decompressed stream.
type ExtractedContent struct {
	Name    string // path within the archive, nested members joined with "/"
	Format  string // format of the container it came from
	Content []byte
}

var magics = []struct {
	format string
	offset int
	magic  []byte
}{
	{FormatZip, 0, []byte("PK\x03\x04")},
	{FormatZip, 0, []byte("PK\x05\x06")},
	{Format7z, 0, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}},
	{FormatGzip, 0, []byte{0x1F, 0x8B}},
	{FormatXz, 0, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
	{FormatZstd, 0, []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{FormatLz4, 0, []byte{0x04, 0x22, 0x4D, 0x18}},
	{FormatBzip2, 0, []byte("BZh")},
	{FormatTar, 257, []byte("ustar")},
}

// DetectFormat identifies a container by its magic bytes, falling back to
// the file extension for formats without one. It returns "" for content
// that is not a supported container.
func DetectFormat(name string, content []byte) string {
	for _, m := range magics {
		end := m.offset + len(m.magic)
		if len(content) >= end && bytes.Equal(content[m.offset:end], m.magic) {
			return m.format
		}
	}
	switch getExtension(name) {
	case ".br":
		return FormatBrotli
	case ".tar":
		return FormatTar
	}
	return ""
}

// Extract expands content of the given format. Members that are themselves
// containers in formats are expanded recursively up to limits.MaxDepth.
// On ErrLimit the members read before the limit are returned too.
func Extract(name string, content []byte, format string, formats []string, limits ExtractLimits) ([]ExtractedContent, error) {
	x := &extraction{limits: limits, formats: formats}
	err := x.expand(filepath.Base(name), format, content, 0)
	return x.out, err
}

// extraction carries the limit budget across nested containers.
type extraction struct {
	limits  ExtractLimits
	formats []string
	members int
	total   int64
	out     []ExtractedContent
}

var errTooLarge = errors.New("member too large")

func (x *extraction) expand(name, format string, content []byte, depth int) error {
	child := func(member string) string {
		if depth == 0 {
			return member
		}
		return name + "/" + member
	}

	switch format {
	case FormatZip:
		zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return fmt.Errorf("failed to open zip: %w", err)
		}
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				continue
			}
			err = x.add(child(f.Name), format, rc, depth)
			rc.Close()
			if err != nil {
				return err
			}
		}
		return nil

	case Format7z:
		sr, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return fmt.Errorf("failed to open 7z: %w", err)
		}
		for _, f := range sr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				continue
			}
			err = x.add(child(f.Name), format, rc, depth)
			rc.Close()
			if err != nil {
				return err
			}
		}
		return nil

	case FormatTar:
		tr := tar.NewReader(bytes.NewReader(content))
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read tar: %w", err)
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}
			if err := x.add(child(hdr.Name), format, tr, depth); err != nil {
				return err
			}
		}
	}

	r, err := streamReader(format, content)
	if err != nil {
		return err
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	return x.add(stripExt(name), format, r, depth)
}

// streamReader opens a single-stream compression format.
func streamReader(format string, content []byte) (io.Reader, error) {
	src := bytes.NewReader(content)
	switch format {
	case FormatGzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip: %w", err)
		}
		return r, nil
	case FormatZstd:
		d, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd: %w", err)
		}
		return d.IOReadCloser(), nil
	case FormatXz:
		r, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz: %w", err)
		}
		return r, nil
	case FormatLz4:
		return lz4.NewReader(src), nil
	case FormatBrotli:
		return brotli.NewReader(src), nil
	case FormatBzip2:
		return bzip2.NewReader(src), nil
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// add reads one member and, when it is itself a container, expands it.
func (x *extraction) add(name, format string, r io.Reader, depth int) error {
	if x.limits.MaxMembers > 0 && x.members >= x.limits.MaxMembers {
		return ErrLimit
	}

	data, err := readLimited(r, x.limits.MaxMemberSize)
	if errors.Is(err, errTooLarge) {
		return nil
	}
	if err != nil {
		// Truncated or corrupt member; keep going with the others.
		return nil
	}
	if x.limits.MaxTotalSize > 0 && x.total+int64(len(data)) > x.limits.MaxTotalSize {
		return ErrLimit
	}

	x.members++
	x.total += int64(len(data))
	x.out = append(x.out, ExtractedContent{Name: name, Format: format, Content: data})

	if x.limits.MaxDepth > 0 && depth+1 >= x.limits.MaxDepth {
		return nil
	}
	inner := DetectFormat(name, data)
	if inner == "" || !shouldExtract(x.formats, inner) {
		return nil
	}
	if err := x.expand(name, inner, data, depth+1); errors.Is(err, ErrLimit) {
		return err
	}
	return nil
}

// readLimited reads r fully, failing with errTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}

// stripExt names the payload of a single-stream container.
func stripExt(name string) string {
	ext := path.Ext(name)
	switch strings.ToLower(ext) {
	case ".tgz":
		return strings.TrimSuffix(name, ext) + ".tar"
	case ".gz", ".zst", ".xz", ".lz4", ".br", ".bz2":
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// shouldExtract reports whether format is enabled in formats.
func shouldExtract(formats []string, format string) bool {
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "all" || f == format {
			return true
		}
	}
	return false
}

// ParseFormats splits a comma-separated format list and rejects unknown
// names.
func ParseFormats(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if f != "all" && !isFormat(f) {
			return nil, fmt.Errorf("unknown extract format %q (supported: %s, all)", f, strings.Join(Formats, ", "))
		}
		out = append(out, f)
	}
	return out, nil
}

func isFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// getExtension returns the lowercase extension of path.
func getExtension(p string) string {
	return strings.ToLower(filepath.Ext(p))
}
