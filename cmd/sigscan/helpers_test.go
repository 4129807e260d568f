package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/matcher"
)

// testBlob holds an ELF header at 1 and a syscall at 9.
var testBlob = []byte{0x00, 0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01, 0x90, 0x0F, 0x05}

const testSignaturesYAML = `signatures:
  - id: sig.test.elf
    name: Test ELF
    pattern: "7F 45 4C 46 ?? ?? 01"
    examples: ["7F 45 4C 46 02 01 01"]
    categories: [format]
  - id: sig.test.syscall
    name: Test syscall
    pattern: "?? 0F 05"
    categories: [code]
`

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// writeSignatures writes the test signature file and returns its path.
func writeSignatures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigs.yml")
	writeFile(t, path, []byte(testSignaturesYAML))
	return path
}

// newTestCmd returns a command writing stdout and stderr to separate
// buffers.
func newTestCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

// resetScanFlags restores scan flag defaults and selects the test
// signatures.
func resetScanFlags(t *testing.T, output string) {
	t.Helper()
	scanSource = signatureSource{path: writeSignatures(t)}
	scanOutputPath = output
	scanOutputFormat = "human"
	scanGit = false
	scanAllHistory = false
	scanRevision = "HEAD"
	scanMaxFileSize = 64 * 1024 * 1024
	scanIncludeHidden = false
	scanContextBytes = matcher.DefaultContextBytes
	scanExtract = ""
	scanWorkers = 0
	scanIncremental = false
	scanStoreBlobs = false
	scanDedup = "location"
}

// scanTarget scans dir into a fresh datastore and returns its path.
func scanTarget(t *testing.T, dir string) string {
	t.Helper()
	ds := filepath.Join(t.TempDir(), "out.ds")
	resetScanFlags(t, ds)
	cmd, _, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{dir}))
	return ds
}
