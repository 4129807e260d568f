package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFind_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	writeFile(t, path, testBlob)
	findFormat, findHex = "text", false

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runFind(cmd, []string{path, "7F 45 4C 46", "?? 0F 05", "CC CC"}))

	assert.Equal(t, "0x1\t7F 45 4C 46\n0x8\t?? 0F 05\nnot found\tCC CC\n", stdout.String())
}

func TestRunFind_JSONHex(t *testing.T) {
	findFormat, findHex = "json", true
	defer func() { findFormat, findHex = "text", false }()

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runFind(cmd, []string{"10 48 2E 99 48 2E", "48 2E", "? 99", "2E 48"}))

	var results []findResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	assert.Equal(t, []findResult{
		{Pattern: "48 2E", Offset: 1},
		{Pattern: "? 99", Offset: 2},
		{Pattern: "2E 48", Offset: -1},
	}, results)
}

func TestRunFind_Stdin(t *testing.T) {
	findFormat, findHex = "text", false

	cmd, stdout, _ := newTestCmd()
	cmd.SetIn(strings.NewReader("hello world"))
	require.NoError(t, runFind(cmd, []string{"-", "77 6F"}))
	assert.Equal(t, "0x6\t77 6F\n", stdout.String())
}

func TestRunFind_Errors(t *testing.T) {
	findFormat, findHex = "text", false
	cmd, _, _ := newTestCmd()

	err := runFind(cmd, []string{filepath.Join(t.TempDir(), "missing"), "00"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "blob.bin")
	writeFile(t, path, testBlob)
	err = runFind(cmd, []string{path, "7F", "0x45"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern 1")

	findHex = true
	defer func() { findHex = false }()
	assert.Error(t, runFind(cmd, []string{"ZZ", "00"}))
}
