package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/enum"
	"github.com/praetorian-inc/sigscan/pkg/matcher"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	scanSource        signatureSource
	scanOutputPath    string
	scanOutputFormat  string
	scanGit           bool
	scanAllHistory    bool
	scanRevision      string
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanContextBytes  int
	scanExtract       string
	scanWorkers       int
	scanIncremental   bool
	scanStoreBlobs    bool
	scanDedup         string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target for byte signatures",
	Long: `Scan a file, directory, git repository or Azure blob container for byte
signatures and record the results in a datastore.

Targets:
  ./firmware            files under a directory (git history too when it holds .git)
  ./image.bin           a single file
  azure://acct/ctr/pfx  blobs of an Azure container; append ?<sas> for private
                        containers or set AZURE_STORAGE_CONNECTION_STRING`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanSource.register(scanCmd.Flags())
	scanCmd.Flags().StringVarP(&scanOutputPath, "output", "o", "sigscan.ds", "Output datastore directory, or a postgres:// DSN")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().BoolVar(&scanGit, "git", false, "Treat target as git repository (enumerate git objects only)")
	scanCmd.Flags().BoolVar(&scanAllHistory, "all-history", false, "With git targets, scan every blob in history instead of one tree")
	scanCmd.Flags().StringVar(&scanRevision, "revision", "HEAD", "With git targets, the revision whose tree is scanned")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 64*1024*1024, "Maximum file size to scan (bytes, 0 = unlimited)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().IntVar(&scanContextBytes, "context-bytes", matcher.DefaultContextBytes, "Bytes of context kept before/after matches (0 to disable)")
	scanCmd.Flags().StringVar(&scanExtract, "extract", "", "Expand archives and compressed files: comma-separated formats or \"all\"")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Parallel file readers (0 = number of CPUs)")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
	scanCmd.Flags().BoolVar(&scanStoreBlobs, "store-blobs", false, "Keep a compressed copy of every blob with matches")
	scanCmd.Flags().StringVar(&scanDedup, "dedup", "location", "JSON output keeps one match per: location, content")
}

// scanTotals counts what one scan did. Guarded by the scan mutex.
type scanTotals struct {
	blobs    int64
	bytes    int64
	matches  int64
	findings int64
	skipped  int64
}

// deferredProvenance is a location of a blob recorded under another path.
type deferredProvenance struct {
	blobID types.BlobID
	prov   types.Provenance
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	logger := slog.Default()

	sigs, err := scanSource.load()
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	dedup, ok := matcher.ParseDedupeMode(scanDedup)
	if !ok {
		return fmt.Errorf("unknown dedup mode: %s", scanDedup)
	}

	m, err := matcher.New(matcher.Config{
		Signatures:   sigs,
		ContextBytes: scanContextBytes,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	extract, err := enum.ParseFormats(scanExtract)
	if err != nil {
		return err
	}

	enumerator, err := createEnumerator(target, enum.Config{
		Root:           target,
		IncludeHidden:  scanIncludeHidden,
		MaxFileSize:    scanMaxFileSize,
		FollowSymlinks: false,
		Extract:        extract,
		ExtractLimits:  enum.DefaultExtractLimits(),
		Workers:        scanWorkers,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating enumerator: %w", err)
	}

	s, blobs, closeOutput, err := openOutput(scanOutputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	for _, sig := range sigs {
		if err := s.AddSignature(sig); err != nil {
			return fmt.Errorf("storing signature %s: %w", sig.ID, err)
		}
	}

	run := store.NewScanRun(target)
	if err := s.AddScan(run); err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	logger.Info("scan started", "scan_id", run.ID, "target", target, "signatures", len(sigs))

	// Enumerators may call back from several goroutines; store writes and
	// the totals are serialised here.
	var (
		mu     sync.Mutex
		totals scanTotals
		extra  []deferredProvenance
	)
	// Further locations of an already yielded blob are stored once the
	// blob itself has been recorded.
	if c, ok := enumerator.(*enum.CombinedEnumerator); ok {
		c.OnDuplicate = func(blobID types.BlobID, prov types.Provenance) error {
			mu.Lock()
			extra = append(extra, deferredProvenance{blobID, prov})
			mu.Unlock()
			return nil
		}
	}
	err = enumerator.Enumerate(commandContext(cmd), func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		if scanIncremental {
			mu.Lock()
			exists, err := s.BlobExists(blobID)
			if err == nil && exists {
				totals.skipped++
				// A blob seen before may still be new at this path.
				err = s.AddProvenance(blobID, prov)
			}
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("checking blob: %w", err)
			}
			if exists {
				return nil
			}
		}

		matches, err := m.MatchWithBlobID(content, blobID)
		if err != nil {
			return fmt.Errorf("matching content: %w", err)
		}

		mu.Lock()
		defer mu.Unlock()

		totals.blobs++
		totals.bytes += int64(len(content))
		totals.matches += int64(len(matches))
		for _, match := range matches {
			exists, err := s.FindingExists(match.FindingID)
			if err != nil {
				return fmt.Errorf("checking finding: %w", err)
			}
			if !exists {
				totals.findings++
			}
		}

		if err := store.Record(s, blobID, int64(len(content)), prov, matches); err != nil {
			return fmt.Errorf("storing %s: %w", displayPath(prov, blobID), err)
		}
		if blobs != nil && len(matches) > 0 {
			if _, err := blobs.Store(content); err != nil {
				return fmt.Errorf("storing blob content: %w", err)
			}
		}
		if len(matches) > 0 {
			logger.Debug("matches", "path", displayPath(prov, blobID), "count", len(matches))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	for _, p := range extra {
		if err := s.AddProvenance(p.blobID, p.prov); err != nil {
			return fmt.Errorf("storing %s: %w", displayPath(p.prov, p.blobID), err)
		}
	}

	run.Blobs, run.Bytes, run.Matches = totals.blobs, totals.bytes, totals.matches
	run.Finish()
	if err := s.AddScan(run); err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	logger.Info("scan finished", "scan_id", run.ID, "blobs", totals.blobs, "matches", totals.matches)

	// Keep stdout pure JSON for machine formats.
	summary := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		summary = cmd.ErrOrStderr()
	}
	fmt.Fprintf(summary, "Scanned %s in %s blobs: %d matches, %d new findings",
		humanize.Bytes(uint64(totals.bytes)), humanize.Comma(totals.blobs), totals.matches, totals.findings)
	if scanIncremental {
		fmt.Fprintf(summary, " (%d blobs skipped)", totals.skipped)
	}
	fmt.Fprintf(summary, "\nResults stored in: %s\n", scanOutputPath)

	switch scanOutputFormat {
	case "json":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		matches = matcher.NewDeduplicatorWithMode(dedup).Filter(matches)
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(matches)
	case "sarif":
		return outputSARIF(cmd, s)
	case "human":
		findings, err := s.GetFindings()
		if err != nil {
			return fmt.Errorf("retrieving findings: %w", err)
		}
		return outputFindingsSummary(cmd, findings, sigs)
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// createEnumerator picks the enumerator for target. Directories holding a
// .git directory are scanned both as files and as git objects.
func createEnumerator(target string, config enum.Config) (enum.Enumerator, error) {
	if strings.HasPrefix(target, "azure://") {
		azure, err := enum.ParseAzureURL(target)
		if err != nil {
			return nil, err
		}
		if cs := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); cs != "" {
			azure.ConnectionString = cs
		}
		return enum.NewAzureEnumerator(config, azure)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("target does not exist: %s", target)
	}

	newGit := func() *enum.GitEnumerator {
		g := enum.NewGitEnumerator(config)
		g.Revision = scanRevision
		g.WalkAll = scanAllHistory
		return g
	}

	if scanGit {
		return newGit(), nil
	}
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(target, ".git")); err == nil {
			return enum.NewCombinedEnumerator(enum.NewFilesystemEnumerator(config), newGit()), nil
		}
	}
	return enum.NewFilesystemEnumerator(config), nil
}

// openOutput opens the scan destination: a postgres DSN, ":memory:" or a
// datastore directory. The blob store is nil unless --store-blobs applies.
func openOutput(path string) (store.Store, *datastore.BlobStore, func(), error) {
	if path == ":memory:" || strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		s, err := store.New(store.Config{Path: path})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating store: %w", err)
		}
		return s, nil, func() { s.Close() }, nil
	}

	ds, err := datastore.Open(path, datastore.Options{StoreBlobs: scanStoreBlobs})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening datastore: %w", err)
	}
	blobs := ds.Blobs
	if !scanStoreBlobs {
		blobs = nil
	}
	return ds.Store, blobs, func() { ds.Close() }, nil
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// displayPath names a blob for humans: its provenance path when it has
// one, its ID otherwise.
func displayPath(prov types.Provenance, blobID types.BlobID) string {
	if prov != nil && prov.Path() != "" {
		return prov.Path()
	}
	return blobID.Hex()
}

func outputFindingsSummary(cmd *cobra.Command, findings []*types.Finding, sigs []*types.Signature) error {
	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}

	names := make(map[string]string, len(sigs))
	for _, s := range sigs {
		names[s.ID] = s.Name
	}

	fmt.Fprintf(out, "\nFindings:\n")
	for i, f := range findings {
		name := names[f.SignatureID]
		if name == "" {
			name = f.SignatureID
		}
		fmt.Fprintf(out, "%d. %s (%s): %d matches\n", i+1, name, f.SignatureID, len(f.Matches))
	}
	return nil
}
