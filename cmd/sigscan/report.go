package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/sarif"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	reportDatastore  string
	reportFormat     string
	reportColor      string
	reportMaxMatches int
)

// maxSnippetBytes caps the context shown on each side of a match.
const maxSnippetBytes = 32

// styles holds color formatters for the human report
type styles struct {
	findingHeading *color.Color
	id             *color.Color
	sigName        *color.Color
	heading        *color.Color
	match          *color.Color
	metadata       *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		findingHeading: color.New(color.Bold, color.FgHiWhite),
		id:             color.New(color.FgHiGreen),
		sigName:        color.New(color.Bold, color.FgHiBlue),
		heading:        color.New(color.Bold),
		match:          color.New(color.FgYellow),
		metadata:       color.New(color.FgHiBlue),
	}

	if !enabled {
		s.findingHeading.DisableColor()
		s.id.DisableColor()
		s.sigName.DisableColor()
		s.heading.DisableColor()
		s.match.DisableColor()
		s.metadata.DisableColor()
	}

	return s
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read findings from a datastore and output them as text, JSON or SARIF",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "sigscan.ds", "Path to datastore directory or file, or a postgres:// DSN")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportMaxMatches, "max-matches", 3, "Matches shown per finding in human output (0 = all)")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDatastore == ":memory:" {
		return fmt.Errorf("cannot report from in-memory store")
	}

	storePath := reportDatastore
	if !strings.HasPrefix(storePath, "postgres://") && !strings.HasPrefix(storePath, "postgresql://") {
		if _, err := os.Stat(storePath); err != nil {
			return fmt.Errorf("datastore not found: %s", storePath)
		}
		storePath = datastore.ResolveDB(storePath)
	}

	s, err := store.New(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	switch reportFormat {
	case "json":
		findings, err := s.GetFindings()
		if err != nil {
			return fmt.Errorf("retrieving findings: %w", err)
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(findings)
	case "human":
		return outputReportHuman(cmd, s)
	case "sarif":
		return outputSARIF(cmd, s)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// colorEnabled resolves --color. "auto" colours only terminals without
// NO_COLOR set.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

// hexBytes renders b as spaced lowercase hex, "7f 45 4c".
func hexBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	enc := hex.EncodeToString(b)
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i := 0; i < len(enc); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(enc[i : i+2])
	}
	return sb.String()
}

// snippetParts holds a hex snippet split for colored output
type snippetParts struct {
	prefix   string // "... " if context was cut at the start
	before   string
	matching string
	after    string
	suffix   string // " ..." if context was cut at the end
}

// formatSnippet keeps at most maxBytes of context on each side, nearest
// the match.
func formatSnippet(sn types.Snippet, maxBytes int) snippetParts {
	before, after := sn.Before, sn.After
	var parts snippetParts
	if len(before) > maxBytes {
		before = before[len(before)-maxBytes:]
		parts.prefix = "... "
	}
	if len(after) > maxBytes {
		after = after[:maxBytes]
		parts.suffix = " ..."
	}
	parts.before = hexBytes(before)
	parts.matching = hexBytes(sn.Matching)
	parts.after = hexBytes(after)
	return parts
}

func outputReportHuman(cmd *cobra.Command, s store.Store) error {
	out := cmd.OutOrStdout()
	st := newStyles(colorEnabled(reportColor))

	scans, err := s.GetScans()
	if err != nil {
		return fmt.Errorf("retrieving scans: %w", err)
	}
	for _, run := range scans {
		state := "running"
		if !run.FinishedAt.IsZero() {
			state = "finished " + humanize.Time(run.FinishedAt)
		}
		fmt.Fprintf(out, "%s %s %s: %s in %s blobs, %d matches (%s)\n",
			st.heading.Sprint("Scan"),
			st.id.Sprint(run.ID.String()),
			st.metadata.Sprint(run.Target),
			humanize.Bytes(uint64(run.Bytes)),
			humanize.Comma(run.Blobs),
			run.Matches,
			state)
	}
	if len(scans) > 0 {
		fmt.Fprintln(out)
	}

	findings, err := s.GetFindings()
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}
	if len(findings) == 0 {
		fmt.Fprintf(out, "No findings.\n")
		return nil
	}

	sigs, err := s.GetSignatures()
	if err != nil {
		return fmt.Errorf("retrieving signatures: %w", err)
	}
	byID := make(map[string]*types.Signature, len(sigs))
	for _, sig := range sigs {
		byID[sig.ID] = sig
	}

	for i, f := range findings {
		fmt.Fprintf(out, "%s (%s %s)\n",
			st.findingHeading.Sprintf("Finding %d/%d", i+1, len(findings)),
			st.heading.Sprint("id"),
			st.id.Sprint(f.ID))

		name, pattern := f.SignatureID, ""
		if sig, ok := byID[f.SignatureID]; ok {
			name = sig.Name
			pattern = sig.Pattern.String()
		}
		fmt.Fprintf(out, "%s %s (%s)\n", st.heading.Sprint("Signature:"), st.sigName.Sprint(name), f.SignatureID)
		if pattern != "" {
			fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Pattern:"), pattern)
		}
		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Bytes:"), st.match.Sprint(hexBytes(f.Content)))

		shown := f.Matches
		if reportMaxMatches > 0 && len(shown) > reportMaxMatches {
			fmt.Fprintf(out, "Showing %d/%d matches:\n", reportMaxMatches, len(shown))
			shown = shown[:reportMaxMatches]
		}

		for k, match := range shown {
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				st.heading.Sprintf("Match %d/%d", k+1, len(f.Matches)),
				st.heading.Sprint("id"),
				st.id.Sprint(match.StructuralID))

			provs, err := s.GetProvenance(match.BlobID)
			if err == nil && len(provs) > 0 {
				path := displayPath(provs[0], match.BlobID)
				if len(provs) > 1 {
					path += fmt.Sprintf(" (+%d more)", len(provs)-1)
				}
				fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("File:"), st.metadata.Sprint(path))
			}

			fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("Blob:"), st.metadata.Sprint(match.BlobID.Hex()))
			fmt.Fprintf(out, "    %s %s (%d bytes)\n",
				st.heading.Sprint("Offset:"),
				match.Location.Offset.String(),
				match.Location.Offset.Len())

			parts := formatSnippet(match.Snippet, maxSnippetBytes)
			fmt.Fprintf(out, "\n        %s%s%s%s%s\n",
				parts.prefix,
				spaced(parts.before, false),
				st.match.Sprint(parts.matching),
				spaced(parts.after, true),
				parts.suffix)
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}

// spaced pads a non-empty hex run from the matched bytes.
func spaced(s string, leading bool) string {
	if s == "" {
		return ""
	}
	if leading {
		return " " + s
	}
	return s + " "
}

// outputSARIF writes every match in the store as SARIF 2.1.0.
func outputSARIF(cmd *cobra.Command, s store.Store) error {
	report := sarif.NewReport()

	sigs, err := s.GetSignatures()
	if err != nil {
		return fmt.Errorf("retrieving signatures: %w", err)
	}
	for _, sig := range sigs {
		report.AddSignature(sig)
	}

	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}

	// Cache provenance by blob ID to avoid repeated queries
	paths := make(map[types.BlobID]string)
	for _, match := range matches {
		path, ok := paths[match.BlobID]
		if !ok {
			path = match.BlobID.Hex()
			if provs, err := s.GetProvenance(match.BlobID); err == nil && len(provs) > 0 {
				path = displayPath(provs[0], match.BlobID)
			}
			paths[match.BlobID] = path
		}
		report.AddResult(match, path)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}
