package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/search"
)

var (
	findFormat string
	findHex    bool
)

var findCmd = &cobra.Command{
	Use:   "find <file|-> <pattern>...",
	Short: "Find the first occurrence of byte patterns in a file",
	Long: `Search one file (or stdin with "-") for every pattern in a single pass and
print the offset of each pattern's first occurrence, or "not found".

Patterns are space-separated hex bytes with "?" or "??" as wildcards:

  sigscan find ./a.out "7F 45 4C 46" "48 8B ?? ?? 89" "E8 ? ? ? ?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringVar(&findFormat, "format", "text", "Output format: text, json")
	findCmd.Flags().BoolVar(&findHex, "hex", false, "Treat the first argument as hex bytes instead of a file")
}

// findResult is one line of find output.
type findResult struct {
	Pattern string `json:"pattern"`
	Offset  int    `json:"offset"` // -1 when not found
}

func runFind(cmd *cobra.Command, args []string) error {
	haystack, err := readHaystack(cmd, args[0])
	if err != nil {
		return err
	}

	patterns := args[1:]
	offsets, err := search.FindStrings(haystack, patterns)
	if err != nil {
		return err
	}

	results := make([]findResult, len(patterns))
	for i, p := range patterns {
		results[i] = findResult{Pattern: p, Offset: offsets[i]}
	}

	switch findFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	case "text":
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Offset == search.NotFound {
				fmt.Fprintf(out, "not found\t%s\n", r.Pattern)
				continue
			}
			fmt.Fprintf(out, "0x%X\t%s\n", r.Offset, r.Pattern)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", findFormat)
	}
}

// readHaystack loads the bytes to search: hex text with --hex, stdin for
// "-", a file otherwise.
func readHaystack(cmd *cobra.Command, arg string) ([]byte, error) {
	if findHex {
		b, err := hex.DecodeString(strings.Join(strings.Fields(arg), ""))
		if err != nil {
			return nil, fmt.Errorf("decoding hex haystack: %w", err)
		}
		return b, nil
	}
	if arg == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return b, nil
}
