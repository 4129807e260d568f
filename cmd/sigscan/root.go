package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/logging"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sigscan",
	Short: "sigscan - wildcard byte signature scanner",
	Long: `sigscan finds wildcard byte patterns such as "48 8B ?? ?? 89" in files,
archives, git history and cloud blob containers.

Every pattern is reduced to its longest run of known bytes; one
multi-pattern automaton pass finds those anchors and each hit is verified
against the full pattern. The first occurrence of each pattern is reported.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file presetting command flags")

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(signaturesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup initialises logging and applies the config file before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	logging.InitLevel("sigscan", cmd.ErrOrStderr(), logLevel())
	if configPath == "" {
		return nil
	}
	return applyConfig(cmd, configPath)
}

// logLevel resolves --verbose and --quiet over SIGSCAN_LOG_LEVEL.
func logLevel() slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	default:
		return logging.LevelFromEnv()
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
