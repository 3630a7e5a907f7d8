package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/output"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display statistics about the active index: indexed dataset version,
entity count, per-category breakdown, and database size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(stats)
			}

			out.Statusf("", "Version:   %s", stats.Version)
			out.Statusf("", "Entities:  %d", stats.EntityCount)
			out.Statusf("", "Names:     %d", stats.NameCount)
			out.Statusf("", "Tokens:    %d", stats.TokenCount)
			out.Statusf("", "Built at:  %s", stats.BuiltAt)
			for _, cat := range stats.Categories {
				out.Statusf("", "  %-20s %d", cat.Name, cat.Count)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
