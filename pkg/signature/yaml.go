package signature

// yamlSignature is the on-disk form of one signature. Patterns and
// examples stay text here; conversion parses them so errors can name the
// signature they belong to.
type yamlSignature struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Pattern          string   `yaml:"pattern"`
	Description      string   `yaml:"description,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`          // hex, whitespace ignored
	NegativeExamples []string `yaml:"negative_examples,omitempty"` // hex, whitespace ignored
	References       []string `yaml:"references,omitempty"`
	Categories       []string `yaml:"categories,omitempty"`
}

type yamlSignaturesFile struct {
	Signatures []yamlSignature `yaml:"signatures"`
}

type yamlSet struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	SignatureIDs []string `yaml:"include_signature_ids"`
}

type yamlSetsFile struct {
	Sets []yamlSet `yaml:"sets"`
}
