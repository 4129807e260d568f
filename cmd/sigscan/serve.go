package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/serve"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	serveSource       signatureSource
	serveWatch        bool
	serveCacheSize    int
	serveContextBytes int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON server",
	Long: `Run sigscan as a long-lived server that reads requests from stdin and
writes responses to stdout, one JSON object per line.

Requests:
  {"type":"find","payload":{"haystack":"<base64>","patterns":["48 ?? 2E"]}}
  {"type":"scan","payload":{"content":"<base64>","source":"name"}}
  {"type":"scan_batch","payload":{"items":[{"source":"a","content":"<base64>"}]}}
  {"type":"signatures"}
  {"type":"close"}

Signatures are compiled once at startup. With --watch and a --signatures
directory they are reloaded whenever a file in it changes. Compiled
"find" pattern sets are cached, so repeating a batch skips compilation.`,
	RunE: runServe,
}

func init() {
	serveSource.register(serveCmd.Flags())
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload the --signatures directory when it changes")
	serveCmd.Flags().IntVar(&serveCacheSize, "cache-size", scanner.DefaultCacheSize, "Compiled pattern sets kept for find requests")
	serveCmd.Flags().IntVar(&serveContextBytes, "context-bytes", 0, "Bytes of context kept around matches (0 = default, negative = none)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	sigs, err := serveSource.load()
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	core, err := scanner.NewCore(scanner.Options{
		Signatures:   sigs,
		ContextBytes: serveContextBytes,
		CacheSize:    serveCacheSize,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer core.Close()

	// Set up signal handling
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if serveWatch {
		if serveSource.path == "" {
			return fmt.Errorf("--watch requires a --signatures directory")
		}
		w := signature.NewWatcher(serveSource.path, func(reloaded []*types.Signature) {
			if err := core.Reload(ctx, reloaded); err != nil {
				logger.Warn("reloading signatures", "error", err)
			}
		}, logger)
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("signature watcher stopped", "error", err)
			}
		}()
	}

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout()).WithLogger(logger)
	return srv.Run(ctx)
}
