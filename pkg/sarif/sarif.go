// Package sarif renders matches as SARIF 2.1.0. Binary content has no
// lines, so regions are byte offsets with base64 snippets.
package sarif

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "sigscan"
)

// ToolVersion is reported in the driver block; the CLI overrides it with
// the build version.
var ToolVersion = "dev"

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule describes one signature.
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	HelpURI          string           `json:"helpUri,omitempty"`
	Properties       *RuleProperties  `json:"properties,omitempty"`
}

// RuleProperties carries the pattern and categories of a signature.
type RuleProperties struct {
	Pattern string   `json:"pattern"`
	Tags    []string `json:"tags,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result is one match.
type Result struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]string `json:"properties,omitempty"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region is a byte range within the artifact.
type Region struct {
	ByteOffset int64    `json:"byteOffset"`
	ByteLength int64    `json:"byteLength"`
	Snippet    *Snippet `json:"snippet,omitempty"`
}

// Snippet holds the matched bytes, base64 encoded.
type Snippet struct {
	Binary string `json:"binary"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddSignature adds a signature as a SARIF rule.
func (r *Report) AddSignature(sig *types.Signature) {
	rule := Rule{
		ID:               sig.ID,
		Name:             sig.Name,
		ShortDescription: ShortDescription{Text: sig.Description},
		Properties: &RuleProperties{
			Pattern: sig.Pattern.String(),
			Tags:    sig.Categories,
		},
	}
	if rule.ShortDescription.Text == "" {
		rule.ShortDescription.Text = sig.Name
	}
	if len(sig.References) > 0 {
		rule.HelpURI = sig.References[0]
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, rule)
}

// AddResult adds a match found in the artifact at path.
func (r *Report) AddResult(match *types.Match, path string) {
	region := Region{
		ByteOffset: match.Location.Offset.Start,
		ByteLength: match.Location.Offset.Len(),
	}
	if len(match.Snippet.Matching) > 0 {
		region.Snippet = &Snippet{Binary: base64.StdEncoding.EncodeToString(match.Snippet.Matching)}
	}

	name := match.SignatureName
	if name == "" {
		name = match.SignatureID
	}

	result := Result{
		RuleID:  match.SignatureID,
		Level:   "note",
		Message: Message{Text: name + " at " + match.Location.Offset.String()},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{URI: formatFileURI(path)},
					Region:           region,
				},
			},
		},
		PartialFingerprints: map[string]string{
			"findingId/v1": match.FindingID,
		},
		Properties: map[string]string{
			"blobId":       match.BlobID.Hex(),
			"structuralId": match.StructuralID,
		},
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format.
// Absolute paths get a file:// prefix, relative paths stay as-is. Archive
// members ("a.zip:lib/x.so") and blob paths are passed through.
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		path = filepath.ToSlash(path)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	return filepath.ToSlash(path)
}
