// Package cmd provides the CLI commands for sdex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
	"github.com/chuanqiong/sdex/internal/logging"
	"github.com/chuanqiong/sdex/pkg/version"
)

var (
	cfgPath   string
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the sdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sdex",
		Short: "Index, search, and diff versioned game datasets",
		Long: `sdex maintains a local search index over versioned game dataset
exports (per-category JSONL files) and computes structural diffs
between dataset versions.

Typical flow:
  sdex index ./sde-2911930        build the index from a dataset directory
  sdex search "Tritanium"         fuzzy search by name or ID
  sdex diff ./sde-old ./sde-new   compare two dataset versions
  sdex changelog list             list recorded changesets`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("sdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.sdex/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRun = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newChangelogCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, sdexerrors.FormatForCLI(err))
		return err
	}
	return nil
}

// startLogging initializes file logging; --debug raises the level and
// mirrors to stderr.
func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging must never block the command itself.
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}
