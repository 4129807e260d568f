package signature

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Loader reads signatures and sets from YAML.
type Loader struct {
	fs fs.FS // source of built-in signatures and sets
}

// NewLoader creates a loader backed by the embedded built-in signatures.
func NewLoader() *Loader {
	return &Loader{fs: builtinFS}
}

// NewLoaderWithFS creates a loader whose built-ins come from fsys. The
// filesystem must use the same "signatures/" and "sets/" layout.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// LoadSignature loads exactly one signature from YAML bytes.
func (l *Loader) LoadSignature(data []byte) (*types.Signature, error) {
	sigs, err := l.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures found in YAML")
	}
	if len(sigs) > 1 {
		return nil, fmt.Errorf("expected single signature, found %d", len(sigs))
	}
	return sigs[0], nil
}

// LoadSignatureFile loads exactly one signature from a YAML file.
func (l *Loader) LoadSignatureFile(path string) (*types.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadSignature(data)
}

// LoadBytes loads every signature in a YAML document.
func (l *Loader) LoadBytes(data []byte) ([]*types.Signature, error) {
	var file yamlSignaturesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	sigs := make([]*types.Signature, 0, len(file.Signatures))
	for _, ys := range file.Signatures {
		sig, err := convertYAMLSignature(ys)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// LoadFile loads every signature in a YAML file.
func (l *Loader) LoadFile(path string) ([]*types.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	sigs, err := l.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sigs, nil
}

// LoadDir loads every .yml and .yaml file below dir, in lexical order.
func (l *Loader) LoadDir(dir string) ([]*types.Signature, error) {
	return l.walk(os.DirFS(dir), ".", dir)
}

// LoadPath loads a single file or a directory tree.
func (l *Loader) LoadPath(path string) ([]*types.Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	return l.LoadFile(path)
}

// LoadBuiltinSignatures loads the signatures shipped with the loader.
func (l *Loader) LoadBuiltinSignatures() ([]*types.Signature, error) {
	return l.walk(l.fs, "signatures", "builtin")
}

// LoadSet loads exactly one signature set from YAML bytes.
func (l *Loader) LoadSet(data []byte) (*types.SignatureSet, error) {
	var file yamlSetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Sets) == 0 {
		return nil, fmt.Errorf("no sets found in YAML")
	}
	if len(file.Sets) > 1 {
		return nil, fmt.Errorf("expected single set, found %d", len(file.Sets))
	}
	return convertYAMLSet(file.Sets[0]), nil
}

// LoadBuiltinSets loads the sets shipped with the loader.
func (l *Loader) LoadBuiltinSets() ([]*types.SignatureSet, error) {
	var sets []*types.SignatureSet

	err := fs.WalkDir(l.fs, "sets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var file yamlSetsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, ys := range file.Sets {
			sets = append(sets, convertYAMLSet(ys))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

// ApplySet returns the signatures named by set, in set order. Unknown IDs
// are an error.
func ApplySet(sigs []*types.Signature, set *types.SignatureSet) ([]*types.Signature, error) {
	byID := make(map[string]*types.Signature, len(sigs))
	for _, s := range sigs {
		byID[s.ID] = s
	}

	out := make([]*types.Signature, 0, len(set.SignatureIDs))
	for _, id := range set.SignatureIDs {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("set %s references unknown signature ID: %s", set.ID, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Loader) walk(fsys fs.FS, root, label string) ([]*types.Signature, error) {
	var sigs []*types.Signature

	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		loaded, err := l.LoadBytes(data)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Join(label, path), err)
		}
		sigs = append(sigs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sigs, nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}

// convertYAMLSignature parses the pattern and examples and computes the
// structural ID.
func convertYAMLSignature(ys yamlSignature) (*types.Signature, error) {
	p, err := pattern.Parse(ys.Pattern)
	if err != nil {
		return nil, fmt.Errorf("signature %q: %w", ys.ID, err)
	}

	examples, err := decodeExamples(ys.Examples)
	if err != nil {
		return nil, fmt.Errorf("signature %q examples: %w", ys.ID, err)
	}
	negatives, err := decodeExamples(ys.NegativeExamples)
	if err != nil {
		return nil, fmt.Errorf("signature %q negative_examples: %w", ys.ID, err)
	}

	s := &types.Signature{
		ID:               ys.ID,
		Name:             ys.Name,
		Pattern:          p,
		Description:      ys.Description,
		Examples:         examples,
		NegativeExamples: negatives,
		References:       ys.References,
		Categories:       ys.Categories,
	}
	s.StructuralID = s.ComputeStructuralID()
	return s, nil
}

func convertYAMLSet(ys yamlSet) *types.SignatureSet {
	return &types.SignatureSet{
		ID:           ys.ID,
		Name:         ys.Name,
		Description:  ys.Description,
		SignatureIDs: ys.SignatureIDs,
	}
}

// decodeExamples decodes hex strings; whitespace between digits is ignored.
func decodeExamples(in []string) ([][]byte, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, len(in))
	for i, s := range in {
		b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
