package main

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/sarif"
)

func TestRunVersion(t *testing.T) {
	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runVersion(cmd, nil))

	out := stdout.String()
	assert.Contains(t, out, "sigscan v"+version)
	assert.Contains(t, out, "Go version: "+runtime.Version())
	assert.Equal(t, version, sarif.ToolVersion)
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"scan", "find", "explain", "signatures", "report", "merge", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
