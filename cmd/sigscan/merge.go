package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/store"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1> <source2> [source3...]",
	Short: "Merge multiple sigscan datastores",
	Long: `Merge multiple sigscan datastores into a single output database.

Sources may be datastore directories or their database files. This is
useful for combining results from distributed scans or from different
scan targets.

Deduplication is automatic - duplicate blobs, matches, and findings
are only stored once in the merged database.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	sources := make([]string, len(args))
	for i, a := range args {
		sources[i] = datastore.ResolveDB(a)
	}

	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: sources,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Merge complete:\n")
	fmt.Fprintf(out, "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(out, "  Blobs merged: %d\n", stats.BlobsMerged)
	fmt.Fprintf(out, "  Signatures merged: %d\n", stats.SignaturesMerged)
	fmt.Fprintf(out, "  Matches merged: %d\n", stats.MatchesMerged)
	fmt.Fprintf(out, "  Findings merged: %d\n", stats.FindingsMerged)
	fmt.Fprintf(out, "  Provenance merged: %d\n", stats.ProvenanceMerged)
	fmt.Fprintf(out, "  Scans merged: %d\n", stats.ScansMerged)
	fmt.Fprintf(out, "Output: %s\n", mergeOutput)

	return nil
}
