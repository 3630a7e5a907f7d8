package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [data-dir]",
		Short: "Build the search index from a dataset directory",
		Long: `Build the search index from a directory of per-category JSONL files.

The index is built beside the active one and swapped in atomically, so
readers keep serving the previous index until the build succeeds. A
failed build leaves the previous index untouched.

Examples:
  sdex index                  index the configured data directory
  sdex index ./sde-2911930    index an explicit dataset directory`,
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

			out := output.New(cmd.OutOrStdout())
			st, err := buildIndex(cmd.Context(), cfg, out, dataDir)
			if err != nil {
				return err
			}
			return st.Close()
		},
	}

	return cmd
}
