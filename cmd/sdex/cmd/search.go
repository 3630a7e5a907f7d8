package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/output"
	"github.com/chuanqiong/sdex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index by name or entity ID",
		Long: `Search the index by localized name or entity ID.

All query terms must match; quoted phrases match as one term. Hits are
ranked exact ID > exact name > name prefix > substring.

Examples:
  sdex search Tritanium
  sdex search 三钛合金
  sdex search 34
  sdex search "Raven Navy Issue" --limit 5
  sdex search raven --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	limit := opts.limit
	if limit == 0 {
		limit = cfg.Search.MaxResults
	}

	engine := search.NewEngine(cfg.Search.MaxResults, nil)
	results, err := engine.Search(cmd.Context(), st, query, limit)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(results)
	}
	out.SearchResults(results)
	return nil
}
