package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/output"
	"github.com/chuanqiong/sdex/internal/store"
	"github.com/chuanqiong/sdex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [data-dir]",
		Short: "Rebuild the index whenever the dataset changes",
		Long: `Watch a dataset directory and rebuild the index each time its files
settle after a change. The previous index keeps serving until the
rebuild succeeds; a failed rebuild is logged and the old index stays
active.

Runs until interrupted.

Examples:
  sdex watch
  sdex watch ./sde-live --debounce 5s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dataDir := cfg.DataDir
			if len(args) > 0 {
				dataDir = args[0]
			}

			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			// Initial build so the watcher starts from a known state.
			st, err := buildIndex(ctx, cfg, out, dataDir)
			if err != nil {
				return err
			}
			manager := store.NewManager(st)
			defer func() {
				if active := manager.Active(); active != nil {
					active.Close()
				}
			}()

			w, err := watcher.New(dataDir, debounce, slog.Default())
			if err != nil {
				return err
			}
			defer w.Stop()
			w.Start(ctx)

			out.Statusf("👀", "Watching %s", dataDir)

			for {
				select {
				case <-ctx.Done():
					out.Newline()
					out.Status("", "Stopped")
					return nil
				case <-w.Rebuilds():
					next, err := buildIndex(ctx, cfg, out, dataDir)
					if err != nil {
						out.Errorf("rebuild failed, keeping previous index: %v", err)
						slog.Error("rebuild_failed", slog.String("error", err.Error()))
						continue
					}
					if prev := manager.Swap(next); prev != nil {
						prev.Close()
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounceWindow,
		"Settle time after the last file change before rebuilding")

	return cmd
}
