package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/search"
)

var explainCmd = &cobra.Command{
	Use:   "explain <pattern>...",
	Short: "Show how patterns are searched",
	Long: `Print the normalised form of each pattern, the leading wildcards that are
stripped, the anchor the automaton looks for and whether the anchor is
scanned as a literal because it overlaps another pattern's anchor.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	patterns, err := pattern.ParseAll(args)
	if err != nil {
		return err
	}
	s, err := search.Compile(patterns)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, p := range patterns {
		plan := s.Explain(i)
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "pattern:  %s\n", p.String())
		fmt.Fprintf(out, "length:   %d (%d known)\n", p.Len(), p.KnownCount())
		fmt.Fprintf(out, "lead:     %d\n", plan.Lead)
		if len(plan.Anchor) == 0 {
			fmt.Fprintf(out, "anchor:   none (never matches)\n")
			continue
		}
		fmt.Fprintf(out, "stripped: %s\n", plan.Stripped.String())
		fmt.Fprintf(out, "anchor:   %s at +%d\n", pattern.FromBytes(plan.Anchor).String(), plan.AnchorOffset+plan.Lead)
		mode := "automaton"
		if plan.Literal {
			mode = "literal"
		}
		fmt.Fprintf(out, "mode:     %s\n", mode)
	}
	return nil
}
