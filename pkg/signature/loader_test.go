package signature

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

const elfYAML = `signatures:
  - id: sig.test.elf
    name: ELF header
    pattern: "7f 45 4c 46 ? ?? 01"
    description: ELF identification
    examples:
      - "7F454C46 020101"
    negative_examples:
      - "7F 45 4C 00"
    references:
      - https://example.com/elf
    categories:
      - format
      - elf
`

func TestLoadSignature_Valid(t *testing.T) {
	loader := NewLoader()

	sig, err := loader.LoadSignature([]byte(elfYAML))
	require.NoError(t, err)

	assert.Equal(t, "sig.test.elf", sig.ID)
	assert.Equal(t, "ELF header", sig.Name)
	assert.Equal(t, "7F 45 4C 46 ? ? 01", sig.Pattern.String())
	assert.Equal(t, "ELF identification", sig.Description)
	assert.Equal(t, [][]byte{{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01}}, sig.Examples)
	assert.Equal(t, [][]byte{{0x7F, 0x45, 0x4C, 0x00}}, sig.NegativeExamples)
	assert.Len(t, sig.References, 1)
	assert.Equal(t, []string{"format", "elf"}, sig.Categories)
	assert.Equal(t, sig.ComputeStructuralID(), sig.StructuralID)
}

func TestLoadSignature_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "invalid yaml", yaml: `this is not valid yaml: [[[`, want: "failed to parse YAML"},
		{name: "no signatures", yaml: `signatures: []`, want: "no signatures"},
		{
			name: "multiple signatures",
			yaml: "signatures:\n  - {id: a, name: A, pattern: \"01\"}\n  - {id: b, name: B, pattern: \"02\"}\n",
			want: "expected single signature, found 2",
		},
		{name: "bad pattern", yaml: "signatures:\n  - {id: a, name: A, pattern: \"01 GG\"}\n", want: `signature "a"`},
		{name: "bad example", yaml: "signatures:\n  - {id: a, name: A, pattern: \"01\", examples: [\"0\"]}\n", want: "examples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadSignature([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSignature_PatternErrorKeepsType(t *testing.T) {
	_, err := NewLoader().LoadSignature([]byte("signatures:\n  - {id: a, name: A, pattern: \"01 ZZ\"}\n"))
	require.Error(t, err)

	var perr *pattern.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ZZ", perr.Token)
	assert.Equal(t, 1, perr.Index)
}

func TestLoadSignatureFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "elf.yml")
	require.NoError(t, os.WriteFile(path, []byte(elfYAML), 0o644))

	sig, err := NewLoader().LoadSignatureFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sig.test.elf", sig.ID)

	_, err = NewLoader().LoadSignatureFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(elfYAML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.yaml"), []byte(
		"signatures:\n  - {id: sig.test.b1, name: B1, pattern: \"CC CC\"}\n  - {id: sig.test.b2, name: B2, pattern: \"90 ? 90\"}\n",
	), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	loader := NewLoader()

	sigs, err := loader.LoadPath(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"sig.test.elf", "sig.test.b1", "sig.test.b2"}, ids(sigs))

	sigs, err = loader.LoadPath(filepath.Join(dir, "nested", "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sig.test.b1", "sig.test.b2"}, ids(sigs))

	_, err = loader.LoadPath(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadDir_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("signatures:\n  - {id: x, name: X, pattern: \"XYZ\"}\n"), 0o644))

	_, err := NewLoader().LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yml")
}

func TestLoadSet(t *testing.T) {
	set, err := NewLoader().LoadSet([]byte(`sets:
  - id: formats
    name: Formats
    description: File formats
    include_signature_ids:
      - sig.a
      - sig.b
`))
	require.NoError(t, err)
	assert.Equal(t, "formats", set.ID)
	assert.Equal(t, "Formats", set.Name)
	assert.Equal(t, []string{"sig.a", "sig.b"}, set.SignatureIDs)

	_, err = NewLoader().LoadSet([]byte(`sets: []`))
	assert.Error(t, err)
	_, err = NewLoader().LoadSet([]byte(`invalid: [`))
	assert.Error(t, err)
}

func TestLoadBuiltins_CustomFS(t *testing.T) {
	mockFS := fstest.MapFS{
		"signatures/test.yml": &fstest.MapFile{Data: []byte(elfYAML)},
		"signatures/skip.txt": &fstest.MapFile{Data: []byte("nope")},
		"sets/test.yml": &fstest.MapFile{Data: []byte(
			"sets:\n  - {id: s, name: S, include_signature_ids: [sig.test.elf]}\n",
		)},
	}

	loader := NewLoaderWithFS(mockFS)

	sigs, err := loader.LoadBuiltinSignatures()
	require.NoError(t, err)
	assert.Equal(t, []string{"sig.test.elf"}, ids(sigs))

	sets, err := loader.LoadBuiltinSets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"sig.test.elf"}, sets[0].SignatureIDs)
}

func TestLoadBuiltins_EmptyFS(t *testing.T) {
	mockFS := fstest.MapFS{
		"signatures/.gitkeep": &fstest.MapFile{},
		"sets/.gitkeep":       &fstest.MapFile{},
	}

	loader := NewLoaderWithFS(mockFS)
	sigs, err := loader.LoadBuiltinSignatures()
	require.NoError(t, err)
	assert.Empty(t, sigs)

	sets, err := loader.LoadBuiltinSets()
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestApplySet(t *testing.T) {
	sigs := []*types.Signature{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got, err := ApplySet(sigs, &types.SignatureSet{ID: "s", SignatureIDs: []string{"c", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(got))

	_, err = ApplySet(sigs, &types.SignatureSet{ID: "s", SignatureIDs: []string{"d"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown signature ID: d")
}

// =============================================================================
// HELPERS
// =============================================================================

func ids(sigs []*types.Signature) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.ID
	}
	return out
}
