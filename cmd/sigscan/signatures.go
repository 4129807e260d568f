package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// signatureSource is the flag group selecting which signatures a command
// uses.
type signatureSource struct {
	path       string
	include    string
	exclude    string
	categories string
	set        string
}

func (s *signatureSource) register(flags *pflag.FlagSet) {
	flags.StringVar(&s.path, "signatures", "", "Path to a signature file or directory (default: builtin)")
	flags.StringVar(&s.include, "signatures-include", "", "Include signatures whose ID matches a regex (comma-separated)")
	flags.StringVar(&s.exclude, "signatures-exclude", "", "Exclude signatures whose ID matches a regex (comma-separated)")
	flags.StringVar(&s.categories, "categories", "", "Keep signatures in any of these categories (comma-separated)")
	flags.StringVar(&s.set, "set", "", "Restrict to a builtin signature set")
}

// load reads the signatures, then applies the set and the filters.
func (s *signatureSource) load() ([]*types.Signature, error) {
	loader := signature.NewLoader()

	var (
		sigs []*types.Signature
		err  error
	)
	if s.path != "" {
		sigs, err = loader.LoadPath(s.path)
	} else {
		sigs, err = loader.LoadBuiltinSignatures()
	}
	if err != nil {
		return nil, err
	}

	if s.set != "" {
		sets, err := loader.LoadBuiltinSets()
		if err != nil {
			return nil, fmt.Errorf("loading sets: %w", err)
		}
		set := findSet(sets, s.set)
		if set == nil {
			return nil, fmt.Errorf("unknown signature set: %s", s.set)
		}
		if sigs, err = signature.ApplySet(sigs, set); err != nil {
			return nil, err
		}
	}

	if s.include != "" || s.exclude != "" || s.categories != "" {
		sigs, err = signature.Filter(sigs, signature.FilterConfig{
			Include:    signature.ParsePatterns(s.include),
			Exclude:    signature.ParsePatterns(s.exclude),
			Categories: signature.ParsePatterns(s.categories),
		})
		if err != nil {
			return nil, fmt.Errorf("filtering signatures: %w", err)
		}
	}

	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures selected")
	}
	return sigs, nil
}

func findSet(sets []*types.SignatureSet, id string) *types.SignatureSet {
	for _, set := range sets {
		if set.ID == id {
			return set
		}
	}
	return nil
}

var (
	listSource signatureSource
	listFormat string
)

var signaturesCmd = &cobra.Command{
	Use:     "signatures",
	Aliases: []string{"sigs"},
	Short:   "Manage byte signatures",
	Long:    "Commands for listing and validating signatures",
}

var signaturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available signatures",
	Long:  "Display the selected signatures with their IDs, names and patterns",
	RunE:  runSignaturesList,
}

var signaturesValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate signatures and sets",
	Long: `Check that every signature has an ID and name, that its pattern has at
least one known byte, that all examples match and no negative example does.
Without a path the builtin signatures and sets are checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignaturesValidate,
}

func init() {
	signaturesCmd.AddCommand(signaturesListCmd)
	signaturesCmd.AddCommand(signaturesValidateCmd)
	listSource.register(signaturesListCmd.Flags())
	signaturesListCmd.Flags().StringVar(&listFormat, "format", "table", "Output format: table, json")
}

func runSignaturesList(cmd *cobra.Command, args []string) error {
	sigs, err := listSource.load()
	if err != nil {
		return err
	}

	switch listFormat {
	case "json":
		return outputSignaturesJSON(cmd, sigs)
	case "table":
		return outputSignaturesTable(cmd, sigs)
	default:
		return fmt.Errorf("unknown output format: %s", listFormat)
	}
}

func runSignaturesValidate(cmd *cobra.Command, args []string) error {
	loader := signature.NewLoader()

	var (
		sigs []*types.Signature
		sets []*types.SignatureSet
		err  error
	)
	if len(args) == 1 {
		sigs, err = loader.LoadPath(args[0])
	} else {
		sigs, err = loader.LoadBuiltinSignatures()
		if err == nil {
			sets, err = loader.LoadBuiltinSets()
		}
	}
	if err != nil {
		return err
	}

	errs := []error{signature.ValidateAll(sigs)}
	known := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		known[s.ID] = true
	}
	for _, set := range sets {
		errs = append(errs, signature.ValidateSet(set, known))
	}

	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(cmd.ErrOrStderr(), "invalid: %s\n", line)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d validation errors", failed)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d signatures and %d sets are valid\n", len(sigs), len(sets))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// signatureJSON is the list output for one signature.
type signatureJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Pattern     string   `json:"pattern"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

func outputSignaturesJSON(cmd *cobra.Command, sigs []*types.Signature) error {
	out := make([]signatureJSON, len(sigs))
	for i, s := range sigs {
		out[i] = signatureJSON{
			ID:          s.ID,
			Name:        s.Name,
			Pattern:     s.Pattern.String(),
			Description: s.Description,
			Categories:  s.Categories,
		}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputSignaturesTable(cmd *cobra.Command, sigs []*types.Signature) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tPattern\tCategories\n")
	fmt.Fprintf(w, "--\t----\t-------\t----------\n")

	for _, s := range sigs {
		categories := ""
		if len(s.Categories) > 0 {
			categories = s.Categories[0]
			if len(s.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(s.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Pattern.String(), categories)
	}

	return nil
}
