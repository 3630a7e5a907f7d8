package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/changelog"
	"github.com/chuanqiong/sdex/internal/diff"
	"github.com/chuanqiong/sdex/internal/output"
)

// diffOptions holds CLI flags for diff.
type diffOptions struct {
	summaryOnly bool
	record      bool
	format      string // "text", "json"
}

func newDiffCmd() *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff <old-dir> <new-dir>",
		Short: "Compare two dataset versions",
		Long: `Compare two dataset directories and report added, removed, and
modified entities with field-level deltas.

Examples:
  sdex diff ./sde-2870223 ./sde-2911930
  sdex diff ./old ./new --summary
  sdex diff ./old ./new --record      persist the result to the changelog
  sdex diff ./old ./new --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.summaryOnly, "summary", false, "Print only per-kind counts")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record the result in the changelog")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runDiff(cmd *cobra.Command, oldDir, newDir string, opts diffOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	oldSnap, err := loadSnapshot(ctx, out, oldDir)
	if err != nil {
		return err
	}
	newSnap, err := loadSnapshot(ctx, out, newDir)
	if err != nil {
		return err
	}

	result, err := diff.NewEngine(nil).Diff(oldSnap, newSnap)
	if err != nil {
		return err
	}

	if opts.record {
		cl, err := changelog.Open(cfg.ChangelogPath, nil)
		if err != nil {
			return err
		}
		defer cl.Close()
		if err := cl.Put(ctx, result); err != nil {
			return err
		}
		out.Successf("Recorded changeset %s -> %s", result.OldVersion, result.NewVersion)
	}

	return renderDiff(cmd, out, result, opts)
}

func renderDiff(cmd *cobra.Command, out *output.Writer, result *diff.VersionDiff, opts diffOptions) error {
	if opts.format == "json" {
		return out.JSON(result)
	}

	out.DiffSummary(result)
	if opts.summaryOnly {
		return nil
	}

	// Resolve display names from the active index when one exists.
	cfg, err := loadConfig()
	if err == nil {
		if st, err := openStore(cfg); err == nil {
			defer st.Close()
			out.DiffRecords(result, resolveNames(cmd.Context(), st))
			return nil
		}
	}
	out.DiffRecords(result, nil)
	return nil
}
