package main

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("signatures", "", "")
	cmd.Flags().String("extract", "", "")
	cmd.Flags().Int("context-bytes", 16, "")
	cmd.Flags().Bool("incremental", false, "")
	return cmd
}

func TestApplyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigscan.yml")
	writeFile(t, path, []byte(`signatures: ./from-config
extract: [zip, gzip]
context_bytes: 32
incremental: true
workers: 8
`))

	cmd := configTestCmd()
	require.NoError(t, cmd.Flags().Set("signatures", "./from-cli"))
	require.NoError(t, applyConfig(cmd, path))

	get := func(name string) string { return cmd.Flags().Lookup(name).Value.String() }
	assert.Equal(t, "./from-cli", get("signatures"), "command line wins")
	assert.Equal(t, "zip,gzip", get("extract"))
	assert.Equal(t, "32", get("context-bytes"))
	assert.Equal(t, "true", get("incremental"))
}

func TestApplyConfig_Errors(t *testing.T) {
	cmd := configTestCmd()
	assert.Error(t, applyConfig(cmd, filepath.Join(t.TempDir(), "missing.yml")))

	bad := filepath.Join(t.TempDir(), "bad.yml")
	writeFile(t, bad, []byte("context_bytes: lots\n"))
	err := applyConfig(cmd, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context_bytes")

	broken := filepath.Join(t.TempDir(), "broken.yml")
	writeFile(t, broken, []byte("signatures: [unterminated\n"))
	assert.Error(t, applyConfig(cmd, broken))
}

func TestConfigValue(t *testing.T) {
	assert.Equal(t, "42", configValue(42))
	assert.Equal(t, "a,b", configValue([]interface{}{"a", "b"}))
	assert.Equal(t, "x", configValue("x"))
}

func TestLogLevel(t *testing.T) {
	defer func() { verbose, quiet = false, false }()

	verbose, quiet = true, false
	assert.Equal(t, slog.LevelDebug, logLevel())

	verbose, quiet = false, true
	assert.Equal(t, slog.LevelError, logLevel())
}
