package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/changelog"
	"github.com/chuanqiong/sdex/internal/output"
)

func newChangelogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Inspect recorded changesets",
		Long: `Inspect changesets previously recorded with 'sdex diff --record'.

Examples:
  sdex changelog list
  sdex changelog show 2870223 2911930
  sdex changelog show 2870223 2911930 --format json`,
	}

	cmd.AddCommand(newChangelogListCmd())
	cmd.AddCommand(newChangelogShowCmd())

	return cmd
}

func newChangelogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded changesets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cl, err := changelog.Open(cfg.ChangelogPath, nil)
			if err != nil {
				return err
			}
			defer cl.Close()

			entries, err := cl.List(cmd.Context())
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).ChangelogEntries(entries)
			return nil
		},
	}
}

func newChangelogShowCmd() *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "show <old-version> <new-version>",
		Short: "Show one recorded changeset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cl, err := changelog.Open(cfg.ChangelogPath, nil)
			if err != nil {
				return err
			}
			defer cl.Close()

			result, err := cl.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return renderDiff(cmd, output.New(cmd.OutOrStdout()), result, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.summaryOnly, "summary", false, "Print only per-kind counts")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}
