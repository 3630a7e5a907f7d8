package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chuanqiong/sdex/internal/output"
	"github.com/chuanqiong/sdex/internal/store"
)

func newResolveCmd() *cobra.Command {
	var showAttrs bool

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Look up one entity by ID",
		Long: `Look up one entity by ID and print its names, category, and
optionally its full attribute tree.

Examples:
  sdex resolve 34
  sdex resolve 34 --attrs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := store.ParseID(args[0])
			if !ok {
				return fmt.Errorf("not a valid entity ID: %s", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.Resolve(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no entity with ID %d", id)
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("", "%d  %s  (%s)", rec.ID, rec.PrimaryName, rec.Category)
			if rec.SecondaryName != "" && rec.SecondaryName != rec.PrimaryName {
				out.Statusf("", "    %s", rec.SecondaryName)
			}

			if showAttrs {
				attrs, err := st.EntityAttrs(cmd.Context(), id)
				if err != nil {
					return err
				}
				return out.JSON(attrs)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showAttrs, "attrs", false, "Print the full attribute tree as JSON")

	return cmd
}
